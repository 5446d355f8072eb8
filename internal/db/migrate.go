package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// DiagnosticsTable holds the diagnostics of each exported batch.
const DiagnosticsTable = "batch_diagnostics"

func pgType(k tables.Kind) string {
	switch k {
	case tables.Int:
		return "INTEGER"
	case tables.Float:
		return "DOUBLE PRECISION"
	case tables.Bool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// TableName is the Postgres name of a persisted table: the CSV stem under
// the export schema.
func TableName(schema string, s tables.Schema) string {
	return schema + "." + s.Stem()
}

// CreateTableSQL renders the DDL for one persisted table. Key columns are
// NOT NULL and form the primary key.
func CreateTableSQL(schema string, s tables.Schema) string {
	key := make(map[string]bool, len(s.Key))
	for _, k := range s.Key {
		key[k] = true
	}
	defs := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		def := pgx.Identifier{c.Name}.Sanitize() + " " + pgType(c.Kind)
		if key[c.Name] {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteAndJoin(s.Key)))
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		sanitizeTable(TableName(schema, s)), strings.Join(defs, ",\n\t"))
}

// Migrate creates the export schema, one table per persisted table and the
// diagnostics table.
func Migrate(ctx context.Context, pool Pool, schema string) error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize()),
	}
	for _, s := range tables.All {
		stmts = append(stmts, CreateTableSQL(schema, s))
	}
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id   TEXT NOT NULL,
	stage    TEXT NOT NULL,
	province TEXT,
	year     INTEGER,
	scenario TEXT,
	outcome  TEXT NOT NULL,
	reason   TEXT NOT NULL
)`, sanitizeTable(schema+"."+DiagnosticsTable)))

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "db: migrate %s", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
