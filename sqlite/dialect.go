// Package sqlite registers a catalog dialect for SQLite database files,
// backed by the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"catmigrate/catalog"
)

// DefaultSchema is the schema name of the primary database of a connection.
const DefaultSchema = "main"

type Dialect struct{}

func init() {
	catalog.Register(Dialect{})
}

func (Dialect) Name() string       { return "sqlite" }
func (Dialect) DriverName() string { return "sqlite" }

// DSN uses Database as the file path. Transactions take the write lock up
// front so concurrent writers wait on busy_timeout instead of failing.
func (Dialect) DSN(p catalog.ConnectionParams) (string, error) {
	if p.Database == "" {
		return "", errors.New("sqlite database path is required")
	}
	if p.Database == ":memory:" {
		return p.Database, nil
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate", p.Database), nil
}

func (Dialect) QualifierParts(p catalog.ConnectionParams) []string {
	return []string{schemaName(p)}
}

func (Dialect) QuoteIdent(name string) string {
	return catalog.QuoteWith(name, `"`, `"`)
}

func (d Dialect) TableDDL(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) (string, error) {
	query := fmt.Sprintf("SELECT sql FROM %s.sqlite_master WHERE type = 'table' AND name = ?", d.QuoteIdent(schemaName(p)))

	var ddl sql.NullString
	if err := q.QueryRowContext(ctx, query, table).Scan(&ddl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("table %s not found", table)
		}
		return "", err
	}
	if !ddl.Valid || ddl.String == "" {
		return "", fmt.Errorf("table %s has no stored definition", table)
	}
	return ddl.String, nil
}

func (d Dialect) Columns(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?, ?) ORDER BY cid", table, schemaName(p))
	if err != nil {
		return nil, err
	}
	cols, err := catalog.ScanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for %s", table)
	}
	return cols, nil
}

func (d Dialect) Tables(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams) ([]string, error) {
	query := fmt.Sprintf("SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%%' ORDER BY name", d.QuoteIdent(schemaName(p)))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

func (Dialect) PrimaryKey(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?, ?) WHERE pk > 0 ORDER BY pk", table, schemaName(p))
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

func (Dialect) Placeholder(int) string {
	return "?"
}

func schemaName(p catalog.ConnectionParams) string {
	if p.Schema == "" {
		return DefaultSchema
	}
	return p.Schema
}
