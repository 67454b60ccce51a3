package probe

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/catalog"
	"github.com/mxindex/mxindex/internal/telemetry"
)

// Endpoint paths probed per indexing pipeline.
const (
	wellKnownClientPath   = "/.well-known/matrix/client"
	capabilitiesPath      = "/_matrix/client/v3/capabilities"
	publicRoomsPath       = "/_matrix/client/v3/publicRooms?limit=1"
	federationVersionPath = "/_matrix/federation/v1/version"
	clientVersionsPath    = "/_matrix/client/versions"
)

// Fetcher runs every metadata probe for a domain concurrently. Each probe is
// failure-isolated: a timeout or bad body yields absence for that probe only.
type Fetcher struct {
	client *client
	logger *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: newClient(cfg),
		logger: logger,
	}
}

// Timeout returns the per-probe timeout.
func (f *Fetcher) Timeout() time.Duration {
	return f.client.timeout
}

// FetchAll fans out one goroutine per probe against targetHost and joins them
// all before returning. The client well-known document is always fetched from
// the canonical domain, never the delegated host. Exactly one outcome is
// produced per probe kind; FetchAll never fails.
func (f *Fetcher) FetchAll(ctx context.Context, domain, targetHost string) catalog.ProbeResult {
	var (
		result catalog.ProbeResult
		wg     sync.WaitGroup
	)

	probes := []struct {
		kind catalog.ProbeKind
		run  func(ctx context.Context) error
	}{
		{catalog.ProbeClientWellKnown, func(ctx context.Context) error {
			return f.fetchClientWellKnown(ctx, domain, &result)
		}},
		{catalog.ProbeCapabilities, func(ctx context.Context) error {
			return f.fetchCapabilities(ctx, targetHost, &result)
		}},
		{catalog.ProbePublicRooms, func(ctx context.Context) error {
			return f.fetchPublicRooms(ctx, targetHost, &result)
		}},
		{catalog.ProbeFederationVersion, func(ctx context.Context) error {
			return f.fetchFederationVersion(ctx, targetHost, &result)
		}},
		{catalog.ProbeClientVersions, func(ctx context.Context) error {
			return f.fetchClientVersions(ctx, targetHost, &result)
		}},
	}

	wg.Add(len(probes))
	for _, p := range probes {
		p := p
		go func() {
			defer wg.Done()
			if err := p.run(ctx); err != nil {
				telemetry.ObserveProbe(string(p.kind), "failure")
				f.logger.Debug("probe failed",
					zap.String("domain", domain),
					zap.String("probe", string(p.kind)),
					zap.Error(err),
				)
				return
			}
			telemetry.ObserveProbe(string(p.kind), "success")
		}()
	}
	wg.Wait()

	return result
}

// Each fetch writes only its own result fields, so the probes share no
// mutable state and need no locking.

func (f *Fetcher) fetchClientWellKnown(ctx context.Context, domain string, result *catalog.ProbeResult) error {
	var doc clientWellKnownDoc
	if err := f.client.getJSON(ctx, domain, wellKnownClientPath, &doc); err != nil {
		return err
	}
	result.Name = doc.Name
	result.Description = doc.Description
	result.LogoURL = doc.LogoURL
	result.Theme = doc.Theme
	return nil
}

func (f *Fetcher) fetchCapabilities(ctx context.Context, host string, result *catalog.ProbeResult) error {
	var doc capabilitiesDoc
	if err := f.client.getJSON(ctx, host, capabilitiesPath, &doc); err != nil {
		return err
	}
	result.RegistrationOpen = doc.Capabilities.ChangePassword.Enabled
	result.RoomVersions = sortRoomVersions(doc.Capabilities.RoomVersions.Available)
	return nil
}

func (f *Fetcher) fetchPublicRooms(ctx context.Context, host string, result *catalog.ProbeResult) error {
	var doc publicRoomsDoc
	if err := f.client.getJSON(ctx, host, publicRoomsPath, &doc); err != nil {
		return err
	}
	count := len(doc.Chunk)
	if doc.TotalRoomCountEst != nil && *doc.TotalRoomCountEst >= 0 {
		count = *doc.TotalRoomCountEst
	}
	result.PublicRoomsCount = &count
	return nil
}

func (f *Fetcher) fetchFederationVersion(ctx context.Context, host string, result *catalog.ProbeResult) error {
	var doc federationVersionDoc
	if err := f.client.getJSON(ctx, host, federationVersionPath, &doc); err != nil {
		return err
	}
	version := doc.Server.Name
	switch {
	case version == "" && doc.Server.Version == "":
		return nil
	case version == "":
		version = doc.Server.Version
	case doc.Server.Version != "":
		version += "/" + doc.Server.Version
	}
	result.FederationVersion = &version
	return nil
}

func (f *Fetcher) fetchClientVersions(ctx context.Context, host string, result *catalog.ProbeResult) error {
	var doc clientVersionsDoc
	if err := f.client.getJSON(ctx, host, clientVersionsPath, &doc); err != nil {
		return err
	}
	if len(doc.Versions) == 0 {
		return nil
	}
	joined := strings.Join(doc.Versions, ", ")
	result.Version = &joined
	return nil
}
