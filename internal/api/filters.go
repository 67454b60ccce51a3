package api

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/mxindex/mxindex/internal/catalog"
)

// parseSearchFilter translates query-string parameters into a SearchFilter.
// Malformed values are rejected with catalog.ErrValidation before any query
// construction; out-of-range limits are clamped later by Normalize, not
// rejected.
func parseSearchFilter(q url.Values) (catalog.SearchFilter, error) {
	filter := catalog.SearchFilter{
		Text:        q.Get("search"),
		RoomVersion: q.Get("room_version"),
	}

	var err error
	if filter.RegistrationOpen, err = parseOptionalBool(q, "registration_open"); err != nil {
		return catalog.SearchFilter{}, err
	}
	if filter.HasRooms, err = parseOptionalBool(q, "has_rooms"); err != nil {
		return catalog.SearchFilter{}, err
	}

	if raw := q.Get("sort_by"); raw != "" {
		switch catalog.SortField(raw) {
		case catalog.SortByDomain, catalog.SortByName, catalog.SortByCreatedAt, catalog.SortByPublicRooms:
			filter.SortBy = catalog.SortField(raw)
		default:
			return catalog.SearchFilter{}, fmt.Errorf("%w: unknown sort_by %q", catalog.ErrValidation, raw)
		}
	}
	if raw := q.Get("sort_order"); raw != "" {
		switch catalog.SortOrder(raw) {
		case catalog.SortAsc, catalog.SortDesc:
			filter.SortOrder = catalog.SortOrder(raw)
		default:
			return catalog.SearchFilter{}, fmt.Errorf("%w: unknown sort_order %q", catalog.ErrValidation, raw)
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return catalog.SearchFilter{}, fmt.Errorf("%w: limit must be an integer", catalog.ErrValidation)
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return catalog.SearchFilter{}, fmt.Errorf("%w: offset must be an integer", catalog.ErrValidation)
		}
		if offset < 0 {
			return catalog.SearchFilter{}, fmt.Errorf("%w: offset must be >= 0", catalog.ErrValidation)
		}
		filter.Offset = offset
	}

	return filter, nil
}

func parseOptionalBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", catalog.ErrValidation, key)
	}
	return &value, nil
}
