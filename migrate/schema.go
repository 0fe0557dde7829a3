package migrate

import (
	"context"
	"fmt"

	"catmigrate/catalog"
	"catmigrate/internal"
)

// ColumnList is the ordered column names of a table. The same order is used
// for SELECT, INSERT and positional row values.
type ColumnList []string

// Replicate recreates table from src in dst and returns its source column
// list. Any pre-existing target table of the same name is dropped first.
func Replicate(ctx context.Context, table string, src, dst *catalog.Conn) (ColumnList, error) {
	ddl, err := src.TableDDL(ctx, table)
	if err != nil {
		return nil, &SchemaError{Table: table, Step: "fetch definition", Err: err}
	}

	rewritten, err := rewriteDDL(ddl, dst.Qualify(table), qualifierRewrites(src, dst))
	if err != nil {
		return nil, &SchemaError{Table: table, Step: "rewrite definition", Err: err}
	}
	internal.Logger.Debug("Rewrote table definition", "table", table, "ddl", rewritten)

	if err := createTable(ctx, dst, table, rewritten); err != nil {
		return nil, err
	}

	cols, err := src.Columns(ctx, table)
	if err != nil {
		return nil, &SchemaError{Table: table, Step: "list columns", Err: err}
	}
	return ColumnList(cols), nil
}

func createTable(ctx context.Context, dst *catalog.Conn, table, ddl string) error {
	tx, err := dst.SQL().BeginTx(ctx, nil)
	if err != nil {
		return &SchemaError{Table: table, Step: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, dst.Dialect.DropTable(dst.Qualify(table))); err != nil {
		return &SchemaError{Table: table, Step: "drop existing table", Err: err}
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return &SchemaError{Table: table, Step: "create table", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &SchemaError{Table: table, Step: "commit", Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// qualifierRewrites lists the quoted and bare spellings of the source
// qualifier with their target replacements.
func qualifierRewrites(src, dst *catalog.Conn) []qualifierRewrite {
	return []qualifierRewrite{
		{
			from: catalog.Qualifier(src.Dialect, src.Params),
			to:   catalog.Qualifier(dst.Dialect, dst.Params),
		},
		{
			from: catalog.RawQualifier(src.Dialect, src.Params),
			to:   catalog.RawQualifier(dst.Dialect, dst.Params),
		},
	}
}
