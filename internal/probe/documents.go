package probe

import (
	"sort"
	"strconv"
)

// Wire shapes of the documents a homeserver publishes. Only the fields the
// catalog cares about are decoded; anything else is ignored.

type clientWellKnownDoc struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logo_url"`
	Theme       *string `json:"theme"`
}

type serverWellKnownDoc struct {
	Server string `json:"m.server"`
}

type capabilitiesDoc struct {
	Capabilities struct {
		ChangePassword struct {
			Enabled *bool `json:"enabled"`
		} `json:"m.change_password"`
		RoomVersions struct {
			Available map[string]string `json:"available"`
		} `json:"m.room_versions"`
	} `json:"capabilities"`
}

type publicRoomsDoc struct {
	Chunk             []struct{} `json:"chunk"`
	TotalRoomCountEst *int       `json:"total_room_count_estimate"`
}

type federationVersionDoc struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server"`
}

type clientVersionsDoc struct {
	Versions []string `json:"versions"`
}

// sortRoomVersions orders room versions numerically where possible so the
// stored sequence is stable across probes (map iteration order is not).
func sortRoomVersions(available map[string]string) []string {
	if len(available) == 0 {
		return nil
	}
	versions := make([]string, 0, len(available))
	for v := range available {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		a, aErr := strconv.Atoi(versions[i])
		b, bErr := strconv.Atoi(versions[j])
		if aErr == nil && bErr == nil {
			return a < b
		}
		if aErr == nil {
			return true
		}
		if bErr == nil {
			return false
		}
		return versions[i] < versions[j]
	})
	return versions
}
