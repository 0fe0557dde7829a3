package migrate

import (
	"context"
	"fmt"
	"time"

	"catmigrate/internal"
)

// TableState is the progress of one table through a migration.
type TableState string

const (
	StatePending           TableState = "PENDING"
	StateSchemaReplicating TableState = "SCHEMA_REPLICATING"
	StateDataCopying       TableState = "DATA_COPYING"
	StateDone              TableState = "DONE"
	StateFailed            TableState = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s TableState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Result is the outcome of migrating one table.
type Result struct {
	Table string
	State TableState
	// FailedIn is the state the table was in when it failed.
	FailedIn  TableState
	Columns   ColumnList
	Rows      int64
	Batches   int
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

func (r Result) OK() bool {
	return r.State == StateDone
}

// MigrateTable replicates the schema of table and copies its rows using one
// dedicated source and one dedicated target connection. Failures are logged
// to the sink and returned in the Result, never as a panic or error.
func (m *Migrator) MigrateTable(ctx context.Context, table string) Result {
	return m.migrateTable(ctx, table, func(TableState) {})
}

func (m *Migrator) migrateTable(ctx context.Context, table string, setState func(TableState)) (res Result) {
	res = Result{Table: table, State: StatePending, StartedAt: time.Now()}
	current := StatePending
	transition := func(s TableState) {
		current = s
		setState(s)
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(res.StartedAt)
		if res.Err != nil {
			res.State = StateFailed
			res.FailedIn = current
			transition(StateFailed)
			m.sink.Append(fmt.Sprintf("❌ Error migrating table %s: %v", table, res.Err))
			internal.Logger.Debug("Table migration failed", "table", table, "state", res.FailedIn, "error", res.Err)
		}
		m.opts.Metrics.ObserveTable(string(res.State), res.Duration)
	}()

	src, err := m.open(ctx, m.Source)
	if err != nil {
		res.Err = err
		return res
	}
	defer src.Close()

	dst, err := m.open(ctx, m.Target)
	if err != nil {
		res.Err = err
		return res
	}
	defer dst.Close()

	m.sink.Append(fmt.Sprintf("🔄 Migrating table: %s", table))

	transition(StateSchemaReplicating)
	cols, err := Replicate(ctx, table, src, dst)
	if err != nil {
		res.Err = err
		return res
	}
	res.Columns = cols
	m.sink.Append(fmt.Sprintf("✅ Table %s created in target schema.", table))

	transition(StateDataCopying)
	orderBy, err := src.PrimaryKey(ctx, table)
	if err != nil {
		internal.Logger.Debug("Primary key lookup failed", "table", table, "error", err)
		orderBy = nil
	}
	if len(orderBy) == 0 {
		m.sink.Append(fmt.Sprintf("⚠️ Table %s has no primary key; rows are paged without a stable order", table))
	}

	stats, err := CopyData(ctx, table, cols, src, dst, CopyOptions{
		BatchSize: m.opts.BatchSize,
		OrderBy:   orderBy,
		Sink:      m.sink,
		Metrics:   m.opts.Metrics,
	})
	res.Rows = stats.Rows
	res.Batches = stats.Batches
	if err != nil {
		res.Err = err
		return res
	}

	res.State = StateDone
	transition(StateDone)
	m.sink.Append(fmt.Sprintf("✅ Data migration completed for table: %s (%d rows in %d batches)", table, stats.Rows, stats.Batches))
	return res
}
