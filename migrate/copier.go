package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"catmigrate/catalog"
	"catmigrate/internal"
)

// CopyStats counts what CopyData committed.
type CopyStats struct {
	Rows    int64
	Batches int
}

// CopyOptions tunes CopyData.
type CopyOptions struct {
	BatchSize int
	// OrderBy gives pagination a deterministic order, normally the primary
	// key. Without it rows may be skipped or repeated if the source changes
	// during the copy.
	OrderBy []string
	Sink    LogSink
	Metrics *internal.Metrics
}

// CopyData pages through table in src and inserts each page into the same
// table in dst, committing once per batch. On failure every earlier batch
// stays committed.
func CopyData(ctx context.Context, table string, cols ColumnList, src, dst *catalog.Conn, opts CopyOptions) (CopyStats, error) {
	var stats CopyStats
	if opts.BatchSize <= 0 {
		return stats, &DataCopyError{Table: table, Err: fmt.Errorf("invalid batch size %d", opts.BatchSize)}
	}
	if len(cols) == 0 {
		return stats, &DataCopyError{Table: table, Err: fmt.Errorf("empty column list")}
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}

	source := src.Qualify(table)
	insertQuery := buildInsert(dst, table, cols)
	internal.Logger.Debug("Copying table data", "table", table, "insert", insertQuery)

	offset := 0
	for {
		selectQuery := src.Dialect.SelectPage(source, cols, opts.OrderBy, opts.BatchSize, offset)
		batch, err := fetchBatch(ctx, src.SQL(), selectQuery, len(cols))
		if err != nil {
			return stats, &DataCopyError{Table: table, Batch: stats.Batches + 1, Offset: offset, Err: fmt.Errorf("failed to fetch rows: %w", err)}
		}
		if len(batch) == 0 {
			return stats, nil
		}

		if err := insertBatch(ctx, dst.SQL(), insertQuery, batch); err != nil {
			return stats, &DataCopyError{Table: table, Batch: stats.Batches + 1, Offset: offset, Err: err}
		}

		stats.Batches++
		stats.Rows += int64(len(batch))
		opts.Metrics.ObserveBatch(len(batch))
		sink.Append(fmt.Sprintf("✅ %d rows inserted for table: %s", len(batch), table))
		internal.Logger.Debug("Batch committed", "table", table, "batch", stats.Batches, "offset", offset, "rows", len(batch))

		offset += opts.BatchSize
	}
}

func buildInsert(dst *catalog.Conn, table string, cols ColumnList) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = dst.Dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dst.Qualify(table),
		strings.Join(catalog.QuoteAll(dst.Dialect, cols), ", "),
		strings.Join(placeholders, ", "))
}

func fetchBatch(ctx context.Context, q catalog.Querier, query string, width int) ([][]any, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch [][]any
	for rows.Next() {
		values := make([]any, width)
		valuePtrs := make([]any, width)
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		batch = append(batch, values)
	}
	return batch, rows.Err()
}

func insertBatch(ctx context.Context, conn *sql.Conn, insertQuery string, batch [][]any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, values := range batch {
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}
