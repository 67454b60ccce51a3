// Package memory provides an in-memory repository for development/testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mxindex/mxindex/internal/catalog"
)

// ServerStore implements catalog.Repository with a map guarded by a mutex.
// The mutex plays the role of the database uniqueness constraint: concurrent
// first-time upserts for the same domain serialize into one insert and one
// update.
type ServerStore struct {
	mu      sync.RWMutex
	byID    map[int64]string
	servers map[string]catalog.ServerRecord
	nextID  int64
	clock   catalog.Clock
}

// NewServerStore constructs a ServerStore.
func NewServerStore(clock catalog.Clock) *ServerStore {
	return &ServerStore{
		byID:    make(map[int64]string),
		servers: make(map[string]catalog.ServerRecord),
		nextID:  1,
		clock:   clock,
	}
}

// Upsert inserts or replaces the fetched fields of a record, preserving
// created_at and the surrogate ID on update.
func (s *ServerStore) Upsert(_ context.Context, record catalog.ServerRecord) (catalog.ServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if existing, ok := s.servers[record.Domain]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		record.ID = s.nextID
		s.nextID++
		record.CreatedAt = now
		s.byID[record.ID] = record.Domain
	}
	record.UpdatedAt = now
	s.servers[record.Domain] = record
	return record, nil
}

// GetByDomain fetches one record, returning catalog.ErrNotFound when absent.
func (s *ServerStore) GetByDomain(_ context.Context, domain string) (catalog.ServerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.servers[domain]
	if !ok {
		return catalog.ServerRecord{}, catalog.ErrNotFound
	}
	return record, nil
}

// ListFiltered applies the search filter over the full set. Semantics match
// the Postgres store: conjunctive predicates, total counted before
// pagination.
func (s *ServerStore) ListFiltered(_ context.Context, filter catalog.SearchFilter) (catalog.SearchResult, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]catalog.ServerRecord, 0, len(s.servers))
	for _, record := range s.servers {
		if matches(record, filter) {
			matched = append(matched, record)
		}
	}
	s.mu.RUnlock()

	sortRecords(matched, filter.SortBy, filter.SortOrder)

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return catalog.SearchResult{
		Servers: matched[start:end],
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListStale returns up to limit domains whose last update predates cutoff,
// oldest first.
func (s *ServerStore) ListStale(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	stale := make([]catalog.ServerRecord, 0)
	for _, record := range s.servers {
		if record.UpdatedAt.Before(cutoff) {
			stale = append(stale, record)
		}
	}
	s.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	domains := make([]string, len(stale))
	for i, record := range stale {
		domains[i] = record.Domain
	}
	return domains, nil
}

func matches(record catalog.ServerRecord, filter catalog.SearchFilter) bool {
	if filter.Text != "" {
		needle := strings.ToLower(filter.Text)
		if !strings.Contains(strings.ToLower(record.Domain), needle) &&
			!containsFold(record.Name, needle) &&
			!containsFold(record.Description, needle) {
			return false
		}
	}
	if filter.RegistrationOpen != nil {
		if record.RegistrationOpen == nil || *record.RegistrationOpen != *filter.RegistrationOpen {
			return false
		}
	}
	if filter.HasRooms != nil {
		hasRooms := record.PublicRoomsCount != nil && *record.PublicRoomsCount > 0
		if hasRooms != *filter.HasRooms {
			return false
		}
	}
	if filter.RoomVersion != "" {
		found := false
		for _, v := range record.RoomVersions {
			if v == filter.RoomVersion {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(s *string, lowerNeedle string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), lowerNeedle)
}

func sortRecords(records []catalog.ServerRecord, by catalog.SortField, order catalog.SortOrder) {
	less := func(a, b catalog.ServerRecord) bool {
		switch by {
		case catalog.SortByName:
			return deref(a.Name) < deref(b.Name)
		case catalog.SortByCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		case catalog.SortByPublicRooms:
			return derefInt(a.PublicRoomsCount) < derefInt(b.PublicRoomsCount)
		default:
			return a.Domain < b.Domain
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if order == catalog.SortDesc {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
