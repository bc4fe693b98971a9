package db

import (
	"strconv"
	"strings"
)

// Dialect captures the placeholder style of a backend. Queries are written
// with "?" placeholders and rebound for dialects that number them.
type Dialect struct {
	Driver Driver
}

// Rebind rewrites "?" placeholders into "$1, $2, ..." for PostgreSQL.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
