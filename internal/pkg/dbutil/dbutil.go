package dbutil

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Finalize turns gendry's `?` placeholders into postgres positional ones.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// OnConflictUpdate appends an upsert clause to an INSERT built by gendry.
func OnConflictUpdate(query string, keys []string, columns []string) string {
	if len(keys) == 0 {
		return query
	}
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(strings.Join(keys, ", "))
	sb.WriteString(")")
	if len(columns) == 0 {
		sb.WriteString(" DO NOTHING")
		return sb.String()
	}
	sb.WriteString(" DO UPDATE SET ")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteString(" = EXCLUDED.")
		sb.WriteString(col)
	}
	return sb.String()
}

func Values(items []string) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
