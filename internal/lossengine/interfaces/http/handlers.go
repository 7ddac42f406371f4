package lossapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gridloss/internal/audit"
	"gridloss/internal/auth"
	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/infrastructure/xlsx"
	"gridloss/internal/lossengine/interfaces/export"
	"gridloss/internal/observability/metrics"
)

const (
	defaultMaxUpload  = 32 << 20
	defaultAuditLimit = 50
)

// AuditTrail records and lists audited actions.
type AuditTrail interface {
	audit.Logger
	Recent(limit int) []audit.Entry
}

// Handler serves the loss engine API.
type Handler struct {
	query     *application.QueryService
	rebuild   *application.RebuildService
	reload    application.RecordSource
	maxUpload int64
	audit     AuditTrail
	logger    *log.Logger
}

// HandlerOption customizes the handler.
type HandlerOption func(*Handler)

// WithReloadSource sets the source used by POST /api/v1/rebuild without a body.
func WithReloadSource(source application.RecordSource) HandlerOption {
	return func(h *Handler) {
		h.reload = source
	}
}

// WithMaxUpload caps the accepted workbook size in bytes.
func WithMaxUpload(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxUpload = limit
		}
	}
}

// WithAuditTrail records rebuilds and exports and serves GET /api/v1/audit.
func WithAuditTrail(trail AuditTrail) HandlerOption {
	return func(h *Handler) {
		h.audit = trail
	}
}

// NewHandler constructs the API handler.
func NewHandler(query *application.QueryService, rebuild *application.RebuildService, logger *log.Logger, opts ...HandlerOption) (*Handler, error) {
	if query == nil {
		return nil, errors.New("lossapi: nil query service")
	}
	if rebuild == nil {
		return nil, errors.New("lossapi: nil rebuild service")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{query: query, rebuild: rebuild, maxUpload: defaultMaxUpload, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/v1/snapshots", h.observe("snapshots", h.snapshots))
	mux.Handle("GET /api/v1/summary", h.observe("summary", h.summary))
	mux.Handle("GET /api/v1/regions", h.observe("regions", h.regions))
	mux.Handle("GET /api/v1/regions/{name}", h.observe("region", h.region))
	mux.Handle("GET /api/v1/feeders/{id}", h.observe("feeder", h.feeder))
	mux.Handle("GET /api/v1/dts/{id}", h.observe("dt", h.dt))
	mux.Handle("GET /api/v1/meters/{id}", h.observe("meter", h.meter))
	mux.Handle("GET /api/v1/search", h.observe("search", h.search))
	mux.Handle("GET /api/v1/results", h.observe("results", h.results))
	mux.Handle("GET /api/v1/exports/{file}", h.observe("export", h.export))
	mux.Handle("POST /api/v1/rebuild", h.observe("rebuild", h.rebuildSnapshot))
	if h.audit != nil {
		mux.Handle("GET /api/v1/audit", h.observe("audit", h.auditEntries))
	}
}

func (h *Handler) snapshots(w http.ResponseWriter, r *http.Request) {
	versions, err := h.query.Versions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	summary, err := q.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) regions(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := application.RegionQuery{
		Region:     strings.TrimSpace(values.Get("region")),
		SortKey:    values.Get("sort"),
		Descending: strings.EqualFold(values.Get("order"), "desc"),
	}
	if raw := values.Get("loss_band"); raw != "" {
		band, ok := network.ParseBand(raw)
		if !ok {
			http.Error(w, "invalid loss_band", http.StatusBadRequest)
			return
		}
		q.LossBand = band
	}
	if raw := values.Get("sla_band"); raw != "" {
		band, ok := network.ParseBand(raw)
		if !ok {
			http.Error(w, "invalid sla_band", http.StatusBadRequest)
			return
		}
		q.SLABand = band
	}

	reader, ok := h.reader(w, r)
	if !ok {
		return
	}
	rows, err := reader.Regions(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) region(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	view, err := q.Region(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) feeder(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	view, err := q.Feeder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) dt(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	view, err := q.DT(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) meter(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	view, err := q.Meter(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	match, err := q.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	q, ok := h.reader(w, r)
	if !ok {
		return
	}
	rows, err := q.Results(r.Context(), strings.TrimSpace(r.URL.Query().Get("feeder")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// export handles GET /api/v1/exports/results.{csv,xlsx,pdf}.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	name, format, ok := strings.Cut(r.PathValue("file"), ".")
	if !ok || name != "results" {
		http.NotFound(w, r)
		return
	}
	q, ok := h.reader(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	snap, err := q.Current(r.Context())
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, err)
		return
	}
	data, err := export.Build(format, snap)
	if err != nil {
		result = metrics.ResultError
		if errors.Is(err, export.ErrUnknownFormat) {
			http.Error(w, "unsupported export format", http.StatusBadRequest)
			return
		}
		h.logger.Printf("export %s error: %v", format, err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	h.record(r, audit.ActionExport, snap, map[string]any{"format": format, "bytes": len(data)})
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename=\"results-v"+strconv.FormatInt(snap.Version, 10)+"."+format+"\"")
	_, _ = w.Write(data)
}

// rebuildSnapshot handles POST /api/v1/rebuild. A workbook body replaces the
// dataset; an empty body reloads the configured source.
func (h *Handler) rebuildSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "workbook too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}

	var snap *application.Snapshot
	if len(body) == 0 {
		if h.reload == nil {
			http.Error(w, "workbook body is required", http.StatusBadRequest)
			return
		}
		snap, err = h.rebuild.RebuildFrom(r.Context(), h.reload)
		if err != nil {
			h.logger.Printf("rebuild reload error: %v", err)
			http.Error(w, "rebuild error", http.StatusBadGateway)
			return
		}
	} else {
		name := r.URL.Query().Get("name")
		records, readErr := xlsx.UploadSource{SourceName: name, Body: body}.Load(r.Context())
		if readErr != nil {
			http.Error(w, "invalid workbook", http.StatusBadRequest)
			return
		}
		source := name
		if source == "" {
			source = "upload"
		}
		snap, err = h.rebuild.Rebuild(r.Context(), source, records)
		if err != nil {
			h.logger.Printf("rebuild upload error: %v", err)
			http.Error(w, "rebuild error", http.StatusInternalServerError)
			return
		}
	}

	h.record(r, audit.ActionRebuild, snap, map[string]any{
		"source":   snap.Source,
		"fallback": snap.Fallback,
		"rowCount": snap.RowCount,
		"bytes":    len(body),
	})
	summary := h.query.SummaryOf(snap)
	writeJSON(w, http.StatusCreated, summary)
}

func (h *Handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.audit.Recent(limit))
}

func (h *Handler) record(r *http.Request, action string, snap *application.Snapshot, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		raw = nil
	}
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "snapshot",
		ResourceID:   strconv.FormatInt(snap.Version, 10),
		Metadata:     raw,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s error: %v", action, err)
	}
}

// reader resolves the optional version query parameter. Without it reads
// follow the latest snapshot.
func (h *Handler) reader(w http.ResponseWriter, r *http.Request) (*application.QueryService, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("version"))
	if raw == "" {
		return h.query, true
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version <= 0 {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return nil, false
	}
	return h.query.At(version), true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrSnapshotNotFound):
		http.Error(w, "no snapshot available", http.StatusServiceUnavailable)
	case errors.Is(err, application.ErrVersionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrNotFound), errors.Is(err, application.ErrNoMatch):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrEmptyQuery), errors.Is(err, application.ErrInvalidSortKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Printf("query error: %v", err)
		http.Error(w, "query error", http.StatusInternalServerError)
	}
}

func (h *Handler) observe(endpoint string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		metrics.IncQuery(endpoint, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
