package mysql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"catmigrate/catalog"
)

const defaultPort = 3306

// Dialect talks to MySQL and MariaDB. A MySQL database is its own schema, so
// tables are qualified by the database name only.
type Dialect struct{}

func init() {
	catalog.Register(Dialect{})
}

func (Dialect) Name() string       { return "mysql" }
func (Dialect) DriverName() string { return "mysql" }

func (Dialect) DSN(p catalog.ConnectionParams) (string, error) {
	if p.Host == "" {
		return "", errors.New("mysql host is required")
	}
	port := p.Port
	if port == 0 {
		port = defaultPort
	}

	cfg := driver.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (Dialect) QualifierParts(p catalog.ConnectionParams) []string {
	return []string{databaseName(p)}
}

func (Dialect) QuoteIdent(name string) string {
	return catalog.QuoteWith(name, "`", "`")
}

func (d Dialect) TableDDL(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) (string, error) {
	var name, ddl string
	query := "SHOW CREATE TABLE " + catalog.Qualify(d, p, table)
	if err := q.QueryRowContext(ctx, query).Scan(&name, &ddl); err != nil {
		return "", err
	}
	return ddl, nil
}

func (Dialect) Columns(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	const query = `
SELECT COLUMN_NAME
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, databaseName(p), table)
	if err != nil {
		return nil, err
	}
	cols, err := catalog.ScanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for %s.%s", databaseName(p), table)
	}
	return cols, nil
}

func (Dialect) Tables(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams) ([]string, error) {
	const query = `
SELECT TABLE_NAME
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

	rows, err := q.QueryContext(ctx, query, databaseName(p))
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

func (Dialect) PrimaryKey(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	const query = `
SELECT COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, databaseName(p), table)
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

// databaseName prefers Database; Schema is accepted as an alias since MySQL
// treats the two as the same thing.
func databaseName(p catalog.ConnectionParams) string {
	if p.Database != "" {
		return p.Database
	}
	return p.Schema
}
