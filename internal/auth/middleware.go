package auth

import (
	"net/http"
	"strings"
)

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret []byte
	Policy Policy
	// QueryTokenPaths may carry the token in an access_token query parameter,
	// for clients such as browser websockets that cannot set headers.
	QueryTokenPaths map[string]struct{}
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, queryTokenPaths ...string) *Middleware {
	paths := make(map[string]struct{}, len(queryTokenPaths))
	for _, path := range queryTokenPaths {
		paths[path] = struct{}{}
	}
	return &Middleware{Secret: secret, Policy: policy, QueryTokenPaths: paths}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(m.token(r), m.Secret)
		if err != nil {
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, ErrForbidden.Error(), http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) token(r *http.Request) string {
	if token := extractBearer(r); token != "" {
		return token
	}
	if _, ok := m.QueryTokenPaths[r.URL.Path]; ok {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
