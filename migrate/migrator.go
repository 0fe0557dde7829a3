// Package migrate copies every table of a source schema into a target
// schema: the table definition first, then the rows in committed batches,
// one table per worker.
package migrate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"catmigrate/catalog"
	"catmigrate/internal"
)

const (
	DefaultBatchSize = 2000
	DefaultWorkers   = 4
)

// OpenFunc opens a dedicated catalog connection.
type OpenFunc func(ctx context.Context, p catalog.ConnectionParams) (*catalog.Conn, error)

// Options tunes a migration run. Zero values select the defaults.
type Options struct {
	BatchSize int
	Workers   int
	// Tables restricts the run to these source tables. Empty means all.
	Tables  []string
	Sink    LogSink
	Metrics *internal.Metrics
}

// Migrator copies tables from a source catalog into a target catalog.
type Migrator struct {
	Source catalog.ConnectionParams
	Target catalog.ConnectionParams

	opts Options
	sink LogSink
	open OpenFunc
}

// NewMigrator returns a Migrator with defaults applied to opts.
func NewMigrator(source, target catalog.ConnectionParams, opts Options) *Migrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &Migrator{
		Source: source,
		Target: target,
		opts:   opts,
		sink:   sink,
		open:   catalog.Open,
	}
}

// WithOpener replaces catalog.Open for every connection the migrator makes.
func (m *Migrator) WithOpener(open OpenFunc) *Migrator {
	m.open = open
	return m
}

// Options returns the options in effect after defaults were applied.
func (m *Migrator) Options() Options {
	return m.opts
}

// ListTables returns the tables of the source schema using a short-lived
// connection.
func (m *Migrator) ListTables(ctx context.Context) ([]string, error) {
	src, err := m.open(ctx, m.Source)
	if err != nil {
		return nil, &DiscoveryError{Schema: m.Source.Schema, Err: err}
	}
	defer src.Close()

	tables, err := src.Tables(ctx)
	if err != nil {
		return nil, &DiscoveryError{Schema: m.Source.Schema, Err: fmt.Errorf("failed to list tables: %w", err)}
	}
	return tables, nil
}

// MigrateAll discovers the source tables and dispatches one migration task
// per table onto a pool of Options.Workers goroutines. It returns once
// dispatch has started; use Run.Wait to block until every task finished.
// A discovery failure is logged once and returned, and nothing is dispatched.
func (m *Migrator) MigrateAll(ctx context.Context) (*Run, error) {
	tables, err := m.ListTables(ctx)
	if err != nil {
		m.sink.Append(fmt.Sprintf("❌ Error fetching tables: %v", err))
		return nil, err
	}
	tables = m.selectTables(tables)
	m.sink.Append(fmt.Sprintf("✅ Found %d tables: [%s]", len(tables), strings.Join(tables, ", ")))

	run := newRun(tables)
	internal.Logger.Debug("Dispatching table migrations", "run", run.ID, "tables", len(tables), "workers", m.opts.Workers)

	var g errgroup.Group
	g.SetLimit(m.opts.Workers)
	go func() {
		defer close(run.done)
		for i, table := range tables {
			g.Go(func() error {
				res := m.migrateTable(ctx, table, func(s TableState) { run.setState(table, s) })
				run.finish(i, res)
				return nil
			})
		}
		g.Wait()
	}()

	return run, nil
}

// Migrate runs MigrateAll and waits for every table.
func (m *Migrator) Migrate(ctx context.Context) ([]Result, error) {
	run, err := m.MigrateAll(ctx)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

func (m *Migrator) selectTables(discovered []string) []string {
	if len(m.opts.Tables) == 0 {
		return discovered
	}

	wanted := make(map[string]bool, len(m.opts.Tables))
	for _, t := range m.opts.Tables {
		wanted[strings.ToLower(t)] = true
	}

	var selected []string
	for _, t := range discovered {
		if wanted[strings.ToLower(t)] {
			selected = append(selected, t)
			delete(wanted, strings.ToLower(t))
		}
	}
	for _, t := range m.opts.Tables {
		if wanted[strings.ToLower(t)] {
			m.sink.Append(fmt.Sprintf("⚠️ Table %s not found in source schema", t))
			delete(wanted, strings.ToLower(t))
		}
	}
	return selected
}

// Run tracks the tables dispatched by one MigrateAll call.
type Run struct {
	ID        string
	Tables    []string
	StartedAt time.Time

	mu      sync.Mutex
	states  map[string]TableState
	results []Result
	done    chan struct{}
}

func newRun(tables []string) *Run {
	states := make(map[string]TableState, len(tables))
	for _, t := range tables {
		states[t] = StatePending
	}
	return &Run{
		ID:        uuid.NewString(),
		Tables:    tables,
		StartedAt: time.Now(),
		states:    states,
		results:   make([]Result, len(tables)),
		done:      make(chan struct{}),
	}
}

func (r *Run) setState(table string, s TableState) {
	r.mu.Lock()
	r.states[table] = s
	r.mu.Unlock()
}

func (r *Run) finish(i int, res Result) {
	r.mu.Lock()
	r.results[i] = res
	r.states[res.Table] = res.State
	r.mu.Unlock()
}

// Done is closed when every dispatched table reached a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until every table finished and returns the results in
// discovery order.
func (r *Run) Wait() []Result {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// States returns a snapshot of each table's current state.
func (r *Run) States() map[string]TableState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]TableState, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	return out
}

// Summary tallies the finished tables of a run.
type Summary struct {
	Succeeded    int
	Failed       int
	Rows         int64
	FailedTables []string
}

// Summary waits for the run and tallies its results.
func (r *Run) Summary() Summary {
	var s Summary
	for _, res := range r.Wait() {
		if res.OK() {
			s.Succeeded++
		} else {
			s.Failed++
			s.FailedTables = append(s.FailedTables, res.Table)
		}
		s.Rows += res.Rows
	}
	return s
}
