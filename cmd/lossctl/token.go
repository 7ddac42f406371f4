package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gridloss/internal/auth"
)

type tokenOptions struct {
	secret  string
	subject string
	role    string
	ttl     time.Duration
}

func newTokenCmd() *cobra.Command {
	var opts tokenOptions

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.secret
			if secret == "" {
				secret = os.Getenv("AUTH_JWT_SECRET")
			}
			if secret == "" {
				return errors.New("token: --secret or AUTH_JWT_SECRET is required")
			}
			role, ok := auth.NormalizeRole(opts.role)
			if !ok {
				return fmt.Errorf("token: unknown role %q", opts.role)
			}
			token, err := auth.IssueJWT([]byte(secret), opts.subject, role, opts.ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.secret, "secret", "", "HMAC secret (default: AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Token subject")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleViewer), "Role: viewer, operator or admin")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
