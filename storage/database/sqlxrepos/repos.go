// Package sqlxrepos implements the core repositories on top of sqlx
// and PostgreSQL. Queries use `?` bindvars and are rebound before
// execution so sqlx.In can expand slice arguments.
package sqlxrepos

import (
	"strings"

	"github.com/akilisha/darasa/core"
)

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func joinOr(conds []string) string {
	return strings.Join(conds, " OR ")
}

func orderClause(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
