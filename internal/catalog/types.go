// Package catalog defines core types shared across subsystems.
package catalog

import (
	"strings"
	"time"
)

// ServerRecord is the canonical unit of the catalog: everything a homeserver
// publishes about itself, aggregated into one row. Fields that a probe did not
// return stay nil, never a zero value. RegistrationOpen nil means unknown,
// not closed.
type ServerRecord struct {
	ID                int64     `json:"id,omitempty"`
	Domain            string    `json:"domain"`
	DelegatedServer   *string   `json:"delegated_server,omitempty"`
	Name              *string   `json:"name,omitempty"`
	Description       *string   `json:"description,omitempty"`
	LogoURL           *string   `json:"logo_url,omitempty"`
	Theme             *string   `json:"theme,omitempty"`
	RegistrationOpen  *bool     `json:"registration_open,omitempty"`
	PublicRoomsCount  *int      `json:"public_rooms_count,omitempty"`
	RoomVersions      []string  `json:"room_versions,omitempty"`
	Version           *string   `json:"version,omitempty"`
	FederationVersion *string   `json:"federation_version,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Delegation is the outcome of resolving a domain's server well-known file.
// TargetHost is always usable: the delegated host when delegation is in
// effect, the domain itself otherwise.
type Delegation struct {
	TargetHost      string
	DelegatedServer *string
}

// ProbeKind identifies one independent metadata probe.
type ProbeKind string

// Probe kinds issued per indexing pipeline.
const (
	ProbeClientWellKnown   ProbeKind = "client_well_known"
	ProbeCapabilities      ProbeKind = "capabilities"
	ProbePublicRooms       ProbeKind = "public_rooms"
	ProbeFederationVersion ProbeKind = "federation_version"
	ProbeClientVersions    ProbeKind = "client_versions"
)

// ProbeResult carries the independent outcome of every probe. A nil field
// means that probe failed or returned nothing; sibling probes are unaffected.
type ProbeResult struct {
	Name              *string
	Description       *string
	LogoURL           *string
	Theme             *string
	RegistrationOpen  *bool
	PublicRoomsCount  *int
	RoomVersions      []string
	Version           *string
	FederationVersion *string
}

// Empty reports whether no probe contributed any field.
func (r ProbeResult) Empty() bool {
	return r.Name == nil &&
		r.Description == nil &&
		r.LogoURL == nil &&
		r.Theme == nil &&
		r.RegistrationOpen == nil &&
		r.PublicRoomsCount == nil &&
		len(r.RoomVersions) == 0 &&
		r.Version == nil &&
		r.FederationVersion == nil
}

// SortField names the columns a search may order by.
type SortField string

// Sort fields accepted by SearchFilter.
const (
	SortByDomain      SortField = "domain"
	SortByName        SortField = "name"
	SortByCreatedAt   SortField = "created_at"
	SortByPublicRooms SortField = "public_rooms_count"
)

// SortOrder is the direction of a search sort.
type SortOrder string

// Sort orders accepted by SearchFilter.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Page size bounds applied to every search.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// SearchFilter captures the optional predicates of a catalog search. All set
// filters compose conjunctively. Nil pointer fields are not applied.
type SearchFilter struct {
	Text             string
	RegistrationOpen *bool
	HasRooms         *bool
	RoomVersion      string
	SortBy           SortField
	SortOrder        SortOrder
	Limit            int
	Offset           int
}

// Normalize fills defaults and clamps the page size to [1, MaxLimit].
func (f SearchFilter) Normalize() SearchFilter {
	if f.SortBy == "" {
		f.SortBy = SortByDomain
	}
	if f.SortOrder == "" {
		f.SortOrder = SortAsc
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// SearchResult is one page of matching records plus the unpaginated total.
type SearchResult struct {
	Servers []ServerRecord `json:"servers"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// JoinRoomVersions serializes a room version sequence for storage.
func JoinRoomVersions(versions []string) *string {
	if len(versions) == 0 {
		return nil
	}
	s := strings.Join(versions, ",")
	return &s
}

// SplitRoomVersions parses the stored form back into a sequence.
func SplitRoomVersions(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}
	return strings.Split(*s, ",")
}

// ValidDomain reports whether a caller-supplied domain is a bare host name:
// non-empty, no path separator, no port.
func ValidDomain(domain string) bool {
	return domain != "" && !strings.ContainsAny(domain, "/:")
}
