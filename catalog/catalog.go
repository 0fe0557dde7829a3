// Package catalog opens dedicated connections to a database catalog and
// describes the metadata primitives a migration needs from it.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultDriver is used when ConnectionParams.Driver is empty.
const DefaultDriver = "snowflake"

// ConnectionParams describes how to reach one catalog endpoint.
type ConnectionParams struct {
	Driver    string `json:"driver,omitempty" yaml:"driver,omitempty"`
	User      string `json:"user" yaml:"user"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	Account   string `json:"account,omitempty" yaml:"account,omitempty"`
	Warehouse string `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	Host      string `json:"host,omitempty" yaml:"host,omitempty"`
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database  string `json:"database" yaml:"database"`
	Schema    string `json:"schema" yaml:"schema"`
}

// DriverName returns the dialect name, falling back to DefaultDriver.
func (p ConnectionParams) DriverName() string {
	if p.Driver == "" {
		return DefaultDriver
	}
	return strings.ToLower(p.Driver)
}

// Endpoint is a password-free description used in logs and errors.
func (p ConnectionParams) Endpoint() string {
	host := p.Account
	if host == "" {
		host = p.Host
	}
	if p.Port > 0 {
		host = fmt.Sprintf("%s:%d", host, p.Port)
	}
	return fmt.Sprintf("%s://%s@%s/%s.%s", p.DriverName(), p.User, host, p.Database, p.Schema)
}

// Querier is the subset of *sql.Conn the dialects query through.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect adapts one catalog engine to the primitives a migration uses.
type Dialect interface {
	// Name is the value of ConnectionParams.Driver selecting this dialect.
	Name() string
	// DriverName is the database/sql driver name.
	DriverName() string
	DSN(p ConnectionParams) (string, error)

	// QualifierParts returns the unquoted parts qualifying a table name,
	// e.g. database and schema.
	QualifierParts(p ConnectionParams) []string
	QuoteIdent(name string) string

	// TableDDL returns a CREATE TABLE statement for table.
	TableDDL(ctx context.Context, q Querier, p ConnectionParams, table string) (string, error)
	// Columns returns column names ordered by ordinal position.
	Columns(ctx context.Context, q Querier, p ConnectionParams, table string) ([]string, error)
	Tables(ctx context.Context, q Querier, p ConnectionParams) ([]string, error)
	PrimaryKey(ctx context.Context, q Querier, p ConnectionParams, table string) ([]string, error)

	DropTable(qualified string) string
	// SelectPage renders a paginated SELECT of columns from qualified.
	// orderBy may be empty.
	SelectPage(qualified string, columns, orderBy []string, limit, offset int) string
	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string
}

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]Dialect)
)

// Register makes a dialect available by name. It panics on duplicates, like
// sql.Register.
func Register(d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()

	name := strings.ToLower(d.Name())
	if _, dup := dialects[name]; dup {
		panic("catalog: Register called twice for dialect " + name)
	}
	dialects[name] = d
}

// Lookup returns the registered dialect for name.
func Lookup(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown catalog driver %q (registered: %s)", name, strings.Join(driversLocked(), ", "))
	}
	return d, nil
}

// Drivers returns the sorted names of registered dialects.
func Drivers() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	return driversLocked()
}

func driversLocked() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Qualifier renders the quoted qualifier, e.g. "DB"."SCHEMA".
func Qualifier(d Dialect, p ConnectionParams) string {
	parts := d.QualifierParts(p)
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = d.QuoteIdent(part)
	}
	return strings.Join(quoted, ".")
}

// RawQualifier renders the unquoted qualifier, e.g. DB.SCHEMA.
func RawQualifier(d Dialect, p ConnectionParams) string {
	return strings.Join(d.QualifierParts(p), ".")
}

// Qualify returns the fully qualified, quoted name of table.
func Qualify(d Dialect, p ConnectionParams, table string) string {
	q := Qualifier(d, p)
	if q == "" {
		return d.QuoteIdent(table)
	}
	return q + "." + d.QuoteIdent(table)
}

// QuoteAll quotes every name with the dialect's identifier quoting.
func QuoteAll(d Dialect, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return quoted
}

// QuoteWith wraps name in open/close, doubling embedded close characters.
func QuoteWith(name, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

// ScanStrings reads a single string column from rows and closes them.
func ScanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
