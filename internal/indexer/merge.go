package indexer

import (
	"fmt"

	"github.com/mxindex/mxindex/internal/catalog"
)

// Merge builds the canonical record for a domain from the delegation outcome
// and the probes' partial result. Pure: no storage access, no clock. Present
// fields copy over, absent inputs stay absent. The only failure is a fully
// empty result, which signals an unreachable domain; delegation alone does
// not count as reachability since it is served by the domain's web host, not
// the homeserver.
func Merge(domain string, delegation catalog.Delegation, result catalog.ProbeResult) (catalog.ServerRecord, error) {
	if result.Empty() {
		return catalog.ServerRecord{}, fmt.Errorf("merge %s: %w", domain, catalog.ErrUnreachableDomain)
	}
	return catalog.ServerRecord{
		Domain:            domain,
		DelegatedServer:   delegation.DelegatedServer,
		Name:              result.Name,
		Description:       result.Description,
		LogoURL:           result.LogoURL,
		Theme:             result.Theme,
		RegistrationOpen:  result.RegistrationOpen,
		PublicRoomsCount:  result.PublicRoomsCount,
		RoomVersions:      result.RoomVersions,
		Version:           result.Version,
		FederationVersion: result.FederationVersion,
	}, nil
}
