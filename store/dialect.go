package store

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name     string
	driver   string
	intType  string
	realType string
	// rowOrder yields rows in insertion order for a freshly rebuilt table.
	rowOrder string
	numbered bool
}

var (
	sqliteDialect = dialect{
		name:     "sqlite",
		driver:   "sqlite",
		intType:  "INTEGER",
		realType: "REAL",
		rowOrder: "rowid",
	}
	postgresDialect = dialect{
		name:     "postgres",
		driver:   "pgx",
		intType:  "BIGINT",
		realType: "DOUBLE PRECISION",
		rowOrder: "ctid",
		numbered: true,
	}
)

// dialectFor picks PostgreSQL for postgres:// URLs and SQLite otherwise.
func dialectFor(dsn string) dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgresDialect
	}
	return sqliteDialect
}

func (d dialect) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if d.numbered {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// productColumns names one column per product. SQLite compares identifiers
// without regard to case, so a product that clashes with country, year or an
// earlier product gets the first free _2, _3, ... suffix.
func productColumns(products []string) []string {
	taken := map[string]bool{"country": true, "year": true}
	names := make([]string, len(products))
	for i, p := range products {
		name := p
		for n := 2; taken[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", p, n)
		}
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

type column struct {
	name    string
	sqlType string
}

func (d dialect) createTable(table string, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c.name) + " " + c.sqlType
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func (d dialect) insert(table string, cols []column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.name)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), d.placeholders(len(cols)))
}
