// Package probe issues the metadata requests a homeserver index relies on:
// delegation resolution plus the independent probes against a resolved host.
package probe

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/catalog"
)

const wellKnownServerPath = "/.well-known/matrix/server"

// Resolver determines a domain's federation endpoint via its server
// well-known file.
type Resolver struct {
	client *client
	logger *zap.Logger
}

// NewResolver constructs a Resolver sharing the fetcher's HTTP settings.
func NewResolver(cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client: newClient(cfg),
		logger: logger,
	}
}

// Resolve fetches the server well-known document for domain. Delegation
// absence is a normal outcome: on any failure the domain itself is the
// target host and no error is surfaced.
func (r *Resolver) Resolve(ctx context.Context, domain string) catalog.Delegation {
	fallback := catalog.Delegation{TargetHost: domain}

	var doc serverWellKnownDoc
	if err := r.client.getJSON(ctx, domain, wellKnownServerPath, &doc); err != nil {
		r.logger.Debug("no server delegation",
			zap.String("domain", domain),
			zap.Error(err),
		)
		return fallback
	}

	host := strings.TrimSpace(doc.Server)
	if host == "" || strings.ContainsAny(host, "/ ") {
		r.logger.Debug("malformed delegation document", zap.String("domain", domain))
		return fallback
	}

	r.logger.Debug("delegation resolved",
		zap.String("domain", domain),
		zap.String("target", host),
	)
	return catalog.Delegation{
		TargetHost:      host,
		DelegatedServer: &host,
	}
}

// Timeout exposes the per-probe timeout so callers can derive pipeline
// deadlines.
func (r *Resolver) Timeout() time.Duration {
	return r.client.timeout
}
