// Package sqlserver registers a catalog dialect for Microsoft SQL Server.
package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"catmigrate/catalog"
)

const (
	defaultPort   = 1433
	defaultSchema = "dbo"
)

type Dialect struct{}

func init() {
	catalog.Register(Dialect{})
}

func (Dialect) Name() string       { return "sqlserver" }
func (Dialect) DriverName() string { return "sqlserver" }

func (Dialect) DSN(p catalog.ConnectionParams) (string, error) {
	if p.Host == "" {
		return "", errors.New("sqlserver host is required")
	}
	port := p.Port
	if port == 0 {
		port = defaultPort
	}

	query := url.Values{}
	query.Add("database", p.Database)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, port),
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

func (Dialect) QualifierParts(p catalog.ConnectionParams) []string {
	if p.Database == "" {
		return []string{schemaName(p)}
	}
	return []string{p.Database, schemaName(p)}
}

func (Dialect) QuoteIdent(name string) string {
	return catalog.QuoteWith(name, "[", "]")
}

type column struct {
	name             string
	dataType         string
	isNullable       string
	charMaxLength    sql.NullInt64
	numericPrecision sql.NullInt64
	numericScale     sql.NullInt64
	defVal           sql.NullString
}

// TableDDL renders CREATE TABLE from INFORMATION_SCHEMA; SQL Server has no
// single-statement DDL export.
func (d Dialect) TableDDL(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) (string, error) {
	cols, err := d.loadColumns(ctx, q, p, table)
	if err != nil {
		return "", err
	}
	pk, err := d.PrimaryKey(ctx, q, p, table)
	if err != nil {
		return "", err
	}
	return buildCreateTable(d, catalog.Qualify(d, p, table), cols, pk), nil
}

func (d Dialect) loadColumns(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]column, error) {
	query := fmt.Sprintf(`
SELECT
  COLUMN_NAME,
  DATA_TYPE,
  IS_NULLABLE,
  CHARACTER_MAXIMUM_LENGTH,
  NUMERIC_PRECISION,
  NUMERIC_SCALE,
  COLUMN_DEFAULT
FROM %s.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION;
`, d.infoSchema(p))

	rows, err := q.QueryContext(ctx, query, schemaName(p), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(
			&c.name,
			&c.dataType,
			&c.isNullable,
			&c.charMaxLength,
			&c.numericPrecision,
			&c.numericScale,
			&c.defVal,
		); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for %s.%s", schemaName(p), table)
	}
	return cols, nil
}

func renderType(c column) string {
	t := strings.ToLower(c.dataType)

	switch t {
	case "char", "nchar", "varchar", "nvarchar", "binary", "varbinary":
		if c.charMaxLength.Valid {
			if c.charMaxLength.Int64 == -1 {
				return fmt.Sprintf("%s(max)", t)
			}
			return fmt.Sprintf("%s(%d)", t, c.charMaxLength.Int64)
		}
		return t
	case "decimal", "numeric":
		if c.numericPrecision.Valid && c.numericScale.Valid {
			return fmt.Sprintf("%s(%d,%d)", t, c.numericPrecision.Int64, c.numericScale.Int64)
		}
		return t
	default:
		return t
	}
}

func buildCreateTable(d Dialect, qualified string, cols []column, pk []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", qualified)
	for i, c := range cols {
		nullStr := "NOT NULL"
		if strings.EqualFold(c.isNullable, "YES") {
			nullStr = "NULL"
		}
		fmt.Fprintf(&b, "  %s %s", d.QuoteIdent(c.name), renderType(c))
		if c.defVal.Valid {
			fmt.Fprintf(&b, " DEFAULT %s", c.defVal.String)
		}
		fmt.Fprintf(&b, " %s", nullStr)
		if i < len(cols)-1 || len(pk) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(pk) > 0 {
		fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n", strings.Join(catalog.QuoteAll(d, pk), ", "))
	}
	b.WriteString(")")
	return b.String()
}

func (d Dialect) Columns(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	cols, err := d.loadColumns(ctx, q, p, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names, nil
}

func (d Dialect) Tables(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams) ([]string, error) {
	query := fmt.Sprintf(`
SELECT TABLE_NAME
FROM %s.TABLES
WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME;
`, d.infoSchema(p))

	rows, err := q.QueryContext(ctx, query, schemaName(p))
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

func (d Dialect) PrimaryKey(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT kcu.COLUMN_NAME
FROM %[1]s.TABLE_CONSTRAINTS tc
JOIN %[1]s.KEY_COLUMN_USAGE kcu
  ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
ORDER BY kcu.ORDINAL_POSITION;
`, d.infoSchema(p))

	rows, err := q.QueryContext(ctx, query, schemaName(p), table)
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

func (Dialect) DropTable(qualified string) string {
	return "DROP TABLE IF EXISTS " + qualified
}

// SelectPage uses OFFSET/FETCH, which requires an ORDER BY clause.
func (d Dialect) SelectPage(qualified string, columns, orderBy []string, limit, offset int) string {
	order := "(SELECT NULL)"
	if len(orderBy) > 0 {
		order = strings.Join(catalog.QuoteAll(d, orderBy), ", ")
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
		strings.Join(catalog.QuoteAll(d, columns), ", "), qualified, order, offset, limit)
}

func (Dialect) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

// infoSchema returns the INFORMATION_SCHEMA of the configured database, or
// of the connection's current database when none is set.
func (d Dialect) infoSchema(p catalog.ConnectionParams) string {
	if p.Database == "" {
		return "INFORMATION_SCHEMA"
	}
	return d.QuoteIdent(p.Database) + ".INFORMATION_SCHEMA"
}

func schemaName(p catalog.ConnectionParams) string {
	if p.Schema == "" {
		return defaultSchema
	}
	return p.Schema
}
