package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mxindex/mxindex/internal/catalog"
)

func TestParseSearchFilterFull(t *testing.T) {
	t.Parallel()

	q := url.Values{
		"search":            {"matrix"},
		"registration_open": {"true"},
		"has_rooms":         {"false"},
		"room_version":      {"10"},
		"sort_by":           {"public_rooms_count"},
		"sort_order":        {"desc"},
		"limit":             {"25"},
		"offset":            {"50"},
	}

	filter, err := parseSearchFilter(q)
	require.NoError(t, err)
	require.Equal(t, "matrix", filter.Text)
	require.NotNil(t, filter.RegistrationOpen)
	require.True(t, *filter.RegistrationOpen)
	require.NotNil(t, filter.HasRooms)
	require.False(t, *filter.HasRooms)
	require.Equal(t, "10", filter.RoomVersion)
	require.Equal(t, catalog.SortByPublicRooms, filter.SortBy)
	require.Equal(t, catalog.SortDesc, filter.SortOrder)
	require.Equal(t, 25, filter.Limit)
	require.Equal(t, 50, filter.Offset)
}

func TestParseSearchFilterEmpty(t *testing.T) {
	t.Parallel()

	filter, err := parseSearchFilter(url.Values{})
	require.NoError(t, err)
	require.Equal(t, catalog.SearchFilter{}, filter)
}

func TestParseSearchFilterRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]url.Values{
		"bad registration_open": {"registration_open": {"maybe"}},
		"bad has_rooms":         {"has_rooms": {"yep"}},
		"unknown sort_by":       {"sort_by": {"id"}},
		"unknown sort_order":    {"sort_order": {"sideways"}},
		"non-integer limit":     {"limit": {"ten"}},
		"non-integer offset":    {"offset": {"1.5"}},
		"negative offset":       {"offset": {"-1"}},
	}
	for name, q := range cases {
		q := q
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := parseSearchFilter(q)
			require.ErrorIs(t, err, catalog.ErrValidation)
		})
	}
}

// Oversized limits are clamped by normalization, not rejected at the edge.
func TestParseSearchFilterOversizedLimit(t *testing.T) {
	t.Parallel()

	filter, err := parseSearchFilter(url.Values{"limit": {"500"}})
	require.NoError(t, err)
	require.Equal(t, 500, filter.Limit)
	require.Equal(t, catalog.MaxLimit, filter.Normalize().Limit)
}
