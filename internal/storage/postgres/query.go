package postgres

import (
	"fmt"
	"strings"

	"github.com/mxindex/mxindex/internal/catalog"
)

// sortColumns whitelists the ORDER BY targets. Anything outside this map
// never reaches the SQL text.
var sortColumns = map[catalog.SortField]string{
	catalog.SortByDomain:      "domain",
	catalog.SortByName:        "name",
	catalog.SortByCreatedAt:   "created_at",
	catalog.SortByPublicRooms: "public_rooms_count",
}

type searchQuery struct {
	countSQL  string
	countArgs []any
	pageSQL   string
	pageArgs  []any
}

// buildSearch translates a normalized filter into a parameterized count
// query and page query. User input only ever travels through the args slice;
// the SQL text is assembled from fixed fragments and whitelisted identifiers.
func buildSearch(filter catalog.SearchFilter) searchQuery {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Text != "" {
		p := arg("%" + escapeLike(filter.Text) + "%")
		conds = append(conds, fmt.Sprintf(
			"(domain ILIKE %s OR name ILIKE %s OR description ILIKE %s)", p, p, p,
		))
	}
	if filter.RegistrationOpen != nil {
		// NULL never equals the parameter, so unknown records drop out.
		conds = append(conds, fmt.Sprintf("registration_open = %s", arg(*filter.RegistrationOpen)))
	}
	if filter.HasRooms != nil {
		if *filter.HasRooms {
			conds = append(conds, "public_rooms_count > 0")
		} else {
			conds = append(conds, "(public_rooms_count IS NULL OR public_rooms_count <= 0)")
		}
	}
	if filter.RoomVersion != "" {
		conds = append(conds, fmt.Sprintf(
			"%s = ANY(string_to_array(room_versions, ','))", arg(filter.RoomVersion),
		))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countSQL := "SELECT COUNT(*) FROM servers" + where
	countArgs := append([]any(nil), args...)

	sortCol := sortColumns[filter.SortBy]
	if sortCol == "" {
		sortCol = "domain"
	}
	direction := "ASC"
	if filter.SortOrder == catalog.SortDesc {
		direction = "DESC"
	}

	pageSQL := fmt.Sprintf(
		"SELECT %s FROM servers%s ORDER BY %s %s LIMIT %s OFFSET %s",
		serverColumns, where, sortCol, direction, arg(filter.Limit), arg(filter.Offset),
	)

	return searchQuery{
		countSQL:  countSQL,
		countArgs: countArgs,
		pageSQL:   pageSQL,
		pageArgs:  args,
	}
}

// escapeLike neutralizes LIKE metacharacters in user text so a search for
// "50%" matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
