// Package snowflake registers the default catalog dialect, Snowflake, through
// the gosnowflake driver.
package snowflake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"

	"catmigrate/catalog"
)

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

type Dialect struct{}

func init() {
	catalog.Register(Dialect{})
}

func (Dialect) Name() string       { return "snowflake" }
func (Dialect) DriverName() string { return "snowflake" }

func (Dialect) DSN(p catalog.ConnectionParams) (string, error) {
	if p.Account == "" {
		return "", errors.New("snowflake account is required")
	}
	cfg := &sf.Config{
		Account:   p.Account,
		User:      p.User,
		Password:  p.Password,
		Database:  p.Database,
		Schema:    p.Schema,
		Warehouse: p.Warehouse,
		Role:      p.Role,
	}
	return sf.DSN(cfg)
}

// QualifierParts resolves the database and schema the way Snowflake resolves
// them in SQL text: plain names are upper-cased, names written in double
// quotes keep their exact case.
func (Dialect) QualifierParts(p catalog.ConnectionParams) []string {
	return []string{resolveName(p.Database), resolveName(p.Schema)}
}

func (Dialect) QuoteIdent(name string) string {
	return catalog.QuoteWith(name, `"`, `"`)
}

// TableDDL asks GET_DDL for the canonical definition of the table.
func (d Dialect) TableDDL(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) (string, error) {
	query := fmt.Sprintf("SELECT GET_DDL('TABLE', %s)", stringLiteral(catalog.Qualify(d, p, table)))

	var ddl string
	if err := q.QueryRowContext(ctx, query).Scan(&ddl); err != nil {
		return "", err
	}
	return ddl, nil
}

func (d Dialect) Columns(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT COLUMN_NAME
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`, d.QuoteIdent(resolveName(p.Database)))

	rows, err := q.QueryContext(ctx, query, resolveName(p.Schema), table)
	if err != nil {
		return nil, err
	}
	cols, err := catalog.ScanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for %s.%s", catalog.RawQualifier(d, p), table)
	}
	return cols, nil
}

func (d Dialect) Tables(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams) ([]string, error) {
	query := fmt.Sprintf(`
SELECT TABLE_NAME
FROM %s.INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`, d.QuoteIdent(resolveName(p.Database)))

	rows, err := q.QueryContext(ctx, query, resolveName(p.Schema))
	if err != nil {
		return nil, err
	}
	return catalog.ScanStrings(rows)
}

// PrimaryKey reads SHOW PRIMARY KEYS, whose result columns are located by
// name since their position is not documented as stable.
func (d Dialect) PrimaryKey(ctx context.Context, q catalog.Querier, p catalog.ConnectionParams, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW PRIMARY KEYS IN TABLE "+catalog.Qualify(d, p, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colIdx, seqIdx := -1, -1
	for i, n := range names {
		switch strings.ToLower(n) {
		case "column_name":
			colIdx = i
		case "key_sequence":
			seqIdx = i
		}
	}
	if colIdx < 0 {
		return nil, errors.New("SHOW PRIMARY KEYS returned no column_name field")
	}

	type keyPart struct {
		name string
		seq  int
	}
	var parts []keyPart
	for rows.Next() {
		values := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		part := keyPart{name: values[colIdx].String, seq: len(parts)}
		if seqIdx >= 0 {
			if n, err := strconv.Atoi(values[seqIdx].String); err == nil {
				part.seq = n
			}
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(parts, func(i, j int) bool { return parts[i].seq < parts[j].seq })
	keys := make([]string, len(parts))
	for i, part := range parts {
		keys[i] = part.name
	}
	return keys, nil
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

func stringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// resolveName returns the stored form of a configured identifier.
func resolveName(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	if plainIdent.MatchString(name) {
		return strings.ToUpper(name)
	}
	return name
}
