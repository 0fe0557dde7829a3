// Package postgres registers a catalog dialect for PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"catmigrate/catalog"
)

const (
	defaultPort   = 5432
	defaultSchema = "public"
)

// Dialect qualifies tables by schema only; the database is chosen by the
// connection.
type Dialect struct{}

func init() {
	catalog.Register(Dialect{})
}

func (Dialect) Name() string       { return "postgres" }
func (Dialect) DriverName() string { return "pgx" }

func (Dialect) DSN(p catalog.ConnectionParams) (string, error) {
	if p.Host == "" {
		return "", errors.New("postgres host is required")
	}
	port := p.Port
	if port == 0 {
		port = defaultPort
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=prefer",
		quoteValue(p.Host), port, quoteValue(p.Database), quoteValue(p.User), quoteValue(p.Password))
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

func (Dialect) QualifierParts(p catalog.ConnectionParams) []string {
	return []string{schemaName(p)}
}

func (Dialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

type column struct {
	name     string
	dataType string
	defVal   sql.NullString
	notNull  bool
}

// TableDDL renders CREATE TABLE from pg_catalog, since PostgreSQL has no
// server-side DDL export.
func (d Dialect) TableDDL(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) (string, error) {
	const query = `
SELECT a.attname,
       pg_catalog.format_type(a.atttypid, a.atttypmod),
       pg_catalog.pg_get_expr(ad.adbin, ad.adrelid),
       a.attnotnull
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

	rows, err := q.QueryContext(ctx, query, schemaName(p), table)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.dataType, &c.defVal, &c.notNull); err != nil {
			return "", err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s.%s not found", schemaName(p), table)
	}

	pk, err := d.PrimaryKey(ctx, q, p, table)
	if err != nil {
		return "", err
	}
	return buildCreateTable(d, catalog.Qualify(d, p, table), cols, pk), nil
}

func buildCreateTable(d Dialect, qualified string, cols []column, pk []string) string {
	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		def := fmt.Sprintf("%s %s", d.QuoteIdent(c.name), c.dataType)
		// Sequence defaults reference objects that are not copied.
		if c.defVal.Valid && !strings.HasPrefix(c.defVal.String, "nextval(") {
			def += " DEFAULT " + c.defVal.String
		}
		if c.notNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(pk) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(catalog.QuoteAll(d, pk), ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", qualified, strings.Join(defs, ",\n  "))
}

func (Dialect) Columns(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	const query = `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	rows, err := q.QueryContext(ctx, query, schemaName(p), table)
	if err != nil {
		return nil, err
	}
	cols, err := catalog.ScanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for %s.%s", schemaName(p), table)
	}
	return cols, nil
}

func (Dialect) Tables(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams) ([]string, error) {
	const query = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

	rows, err := q.QueryContext(ctx, query, schemaName(p))
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

func (Dialect) PrimaryKey(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	const query = `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY kcu.ordinal_position`

	rows, err := q.QueryContext(ctx, query, schemaName(p), table)
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

func (Dialect) DropTable(qualified string) string {
	return "DROP TABLE IF EXISTS " + qualified
}

func (d Dialect) SelectPage(qualified string, columns, orderBy []string, limit, offset int) string {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(catalog.QuoteAll(d, columns), ", "), qualified)
	if len(orderBy) > 0 {
		query += " ORDER BY " + strings.Join(catalog.QuoteAll(d, orderBy), ", ")
	}
	return query + fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func (Dialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func schemaName(p catalog.ConnectionParams) string {
	if p.Schema == "" {
		return defaultSchema
	}
	return p.Schema
}

// quoteValue quotes a keyword/value DSN value.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
