package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-retriever/internal/config"
	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

const tokenUsage = "usage: sercha-retriever token <subject> [admin|reader] [ttl]"

// issueToken prints a bearer token signed with the configured secret.
// Args are: subject, optional role (default admin), optional ttl (default 24h).
func issueToken(cfg *config.Config, args []string, out io.Writer) error {
	if !cfg.AuthEnabled() {
		return errors.New("JWT_SECRET is not set; auth is disabled")
	}
	if len(args) < 1 || len(args) > 3 {
		return errors.New(tokenUsage)
	}

	role := domain.RoleAdmin
	if len(args) > 1 {
		role = domain.Role(args[1])
	}
	ttl := 24 * time.Hour
	if len(args) > 2 {
		d, err := time.ParseDuration(args[2])
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", args[2], err)
		}
		ttl = d
	}

	token, err := auth.NewAdapter(cfg.Auth.JWTSecret, cfg.Auth.Issuer).IssueToken(args[0], role, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
