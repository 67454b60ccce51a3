package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mxindex/mxindex/internal/catalog"
)

func strPtr(s string) *string { return &s }

func TestMergeCopiesPresentFields(t *testing.T) {
	t.Parallel()

	open := true
	rooms := 7
	delegation := catalog.Delegation{
		TargetHost:      "synapse.example.org",
		DelegatedServer: strPtr("synapse.example.org"),
	}
	result := catalog.ProbeResult{
		Name:              strPtr("Example"),
		RegistrationOpen:  &open,
		PublicRoomsCount:  &rooms,
		RoomVersions:      []string{"9", "10"},
		FederationVersion: strPtr("Synapse/1.98.0"),
	}

	record, err := Merge("example.org", delegation, result)
	require.NoError(t, err)

	require.Equal(t, "example.org", record.Domain)
	require.Equal(t, delegation.DelegatedServer, record.DelegatedServer)
	require.Equal(t, result.Name, record.Name)
	require.Nil(t, record.Description)
	require.Nil(t, record.LogoURL)
	require.Equal(t, &open, record.RegistrationOpen)
	require.Equal(t, &rooms, record.PublicRoomsCount)
	require.Equal(t, []string{"9", "10"}, record.RoomVersions)
	require.Equal(t, result.FederationVersion, record.FederationVersion)
}

func TestMergeEmptyResultIsUnreachable(t *testing.T) {
	t.Parallel()

	_, err := Merge("dead.example.org", catalog.Delegation{TargetHost: "dead.example.org"}, catalog.ProbeResult{})
	require.ErrorIs(t, err, catalog.ErrUnreachableDomain)
}

// A delegation document is served by the domain's web host, not the
// homeserver, so it alone does not make the domain indexable.
func TestMergeDelegationAloneIsUnreachable(t *testing.T) {
	t.Parallel()

	delegation := catalog.Delegation{
		TargetHost:      "synapse.example.org",
		DelegatedServer: strPtr("synapse.example.org"),
	}
	_, err := Merge("example.org", delegation, catalog.ProbeResult{})
	require.ErrorIs(t, err, catalog.ErrUnreachableDomain)
}
