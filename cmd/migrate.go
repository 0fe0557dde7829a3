package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"catmigrate/catalog"
	"catmigrate/config"
	"catmigrate/dynamodb"
	"catmigrate/internal"
	"catmigrate/migrate"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Recreate every source table in the target schema and copy its rows",
		Args:          cobra.NoArgs,
		RunE:          runMigrate,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd.Flags().String("source", "", "Source in format client/env (required)")
	migrateCmd.Flags().String("dest", "", "Destination in format client/env (required)")
	migrateCmd.MarkFlagRequired("source")
	migrateCmd.MarkFlagRequired("dest")

	migrateCmd.Flags().Int("batch-size", 0, fmt.Sprintf("Rows per committed batch, %d-%d (default %d)", config.MinBatchSize, config.MaxBatchSize, migrate.DefaultBatchSize))
	migrateCmd.Flags().Int("workers", 0, fmt.Sprintf("Tables migrated concurrently (default %d)", migrate.DefaultWorkers))
	migrateCmd.Flags().StringSlice("tables", nil, "Only migrate these tables")
	migrateCmd.Flags().Bool("interactive", false, "Pick tables interactively")
	migrateCmd.Flags().Bool("ask-password", false, "Prompt for passwords missing from the config")
	migrateCmd.Flags().Bool("report", false, "Record the run in the configured DynamoDB report table")
	migrateCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9102")
	migrateCmd.Flags().Bool("verbose", false, "Enable verbose logging")
	return migrateCmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	dest, _ := cmd.Flags().GetString("dest")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	workers, _ := cmd.Flags().GetInt("workers")
	tables, _ := cmd.Flags().GetStringSlice("tables")
	interactive, _ := cmd.Flags().GetBool("interactive")
	askPassword, _ := cmd.Flags().GetBool("ask-password")
	report, _ := cmd.Flags().GetBool("report")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	verbose, _ := cmd.Flags().GetBool("verbose")

	setVerbosity(verbose)
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	batchSize, err = cfg.BatchSize(batchSize)
	if err != nil {
		return formatError(err)
	}
	workers, err = cfg.Workers(workers)
	if err != nil {
		return formatError(err)
	}

	sourceParams, err := resolveConnection(cfg, source, askPassword)
	if err != nil {
		return formatError(fmt.Errorf("invalid source: %w", err))
	}
	destParams, err := resolveConnection(cfg, dest, askPassword)
	if err != nil {
		return formatError(fmt.Errorf("invalid destination: %w", err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := preflight(ctx, out, sourceParams, destParams); err != nil {
		return formatError(err)
	}

	var metrics *internal.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = internal.NewMetrics(reg)
		shutdown := serveMetrics(metricsAddr, reg)
		defer shutdown()
	}

	var sink migrate.LogSink = migrate.NewWriterSink(out)
	if verbose {
		sink = migrate.MultiSink{sink, migrate.SlogSink{}}
	}

	opts := migrate.Options{
		BatchSize: batchSize,
		Workers:   workers,
		Tables:    tables,
		Sink:      sink,
		Metrics:   metrics,
	}
	if interactive {
		selected, err := selectTables(ctx, migrate.NewMigrator(sourceParams, destParams, opts))
		if err != nil {
			return formatError(err)
		}
		opts.Tables = selected
	}
	migrator := migrate.NewMigrator(sourceParams, destParams, opts)

	internal.Logger.Info("Starting migration",
		"source", sourceParams.Endpoint(),
		"dest", destParams.Endpoint(),
		"batchSize", batchSize,
		"workers", workers)

	run, err := migrator.MigrateAll(ctx)
	if err != nil {
		// already reported by the migrator
		return errors.New("❌ Migration aborted")
	}

	results := run.Wait()
	summary := run.Summary()
	fmt.Fprintf(out, "🏁 Migration finished in %s: %d succeeded, %d failed, %d rows copied\n",
		time.Since(run.StartedAt).Round(time.Millisecond), summary.Succeeded, summary.Failed, summary.Rows)

	if report {
		if err := recordRun(ctx, cfg, run, results, sourceParams, destParams); err != nil {
			internal.Logger.Error("Failed to record run", "run", run.ID, "error", err)
			fmt.Fprintf(out, "⚠️ Run %s was not recorded: %v\n", run.ID, err)
		} else {
			fmt.Fprintf(out, "✅ Run %s recorded\n", run.ID)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("❌ %d table(s) failed: %s", summary.Failed, strings.Join(summary.FailedTables, ", "))
	}
	return nil
}

func setVerbosity(verbose bool) {
	if verbose {
		internal.SetLogLevel("debug")
	} else {
		internal.SetLogLevel("error")
	}
}

// resolveConnection looks up client/env in cfg, prompting for a missing
// password when asked to.
func resolveConnection(cfg *config.Config, connStr string, askPassword bool) (catalog.ConnectionParams, error) {
	conn, err := config.ParseConnectionString(connStr)
	if err != nil {
		return catalog.ConnectionParams{}, err
	}

	params, err := cfg.GetConnection(conn.Client, conn.Env)
	if err != nil {
		return catalog.ConnectionParams{}, err
	}

	if askPassword && params.Password == "" && params.DriverName() != "sqlite" {
		prompt := &survey.Password{
			Message: fmt.Sprintf("Password for %s (%s):", conn, params.Endpoint()),
		}
		if err := survey.AskOne(prompt, &params.Password); err != nil {
			return catalog.ConnectionParams{}, fmt.Errorf("password prompt failed: %w", err)
		}
	}
	return params, nil
}

// preflight checks both endpoints accept a connection before any table is
// touched.
func preflight(ctx context.Context, out io.Writer, endpoints ...catalog.ConnectionParams) error {
	for _, p := range endpoints {
		err := internal.WithSpinnerTo(out, "Connected to "+p.Endpoint(), func() error {
			c, err := catalog.Open(ctx, p)
			if err != nil {
				return err
			}
			return c.Close()
		}, !internal.VerboseMode)
		if err != nil {
			return err
		}
	}
	return nil
}

func selectTables(ctx context.Context, migrator *migrate.Migrator) ([]string, error) {
	tables, err := migrator.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return internal.NewTableSelector(tables).SelectTables()
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			internal.Logger.Error("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	internal.Logger.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func recordRun(ctx context.Context, cfg *config.Config, run *migrate.Run, results []migrate.Result, source, dest catalog.ConnectionParams) error {
	if cfg.Report.DynamoDB == nil {
		return errors.New("no report table configured")
	}

	recorder, err := dynamodb.NewRecorder(ctx, *cfg.Report.DynamoDB)
	if err != nil {
		return err
	}
	if err := recorder.EnsureTable(ctx); err != nil {
		return err
	}
	return recorder.Record(ctx, dynamodb.RunRecord{
		ID:        run.ID,
		Source:    source.Endpoint(),
		Target:    dest.Endpoint(),
		StartedAt: run.StartedAt,
		Results:   results,
	})
}

func formatError(err error) error {
	errStr := err.Error()

	var connErr *catalog.ConnectionError
	isConn := errors.As(err, &connErr)

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return fmt.Errorf("❌ Cannot connect to the catalog. Please check your connection settings.")
	case strings.Contains(errStr, "Access denied"),
		strings.Contains(errStr, "Incorrect username or password"),
		strings.Contains(errStr, "password authentication failed"),
		strings.Contains(errStr, "Login failed"):
		return fmt.Errorf("❌ Authentication failed. Please check your username and password.")
	case strings.Contains(errStr, "Unknown database"), strings.Contains(errStr, "does not exist or not authorized"):
		return fmt.Errorf("❌ Database or schema does not exist. Please check your database name.")
	case isConn:
		return fmt.Errorf("❌ Cannot connect to %s: %v", connErr.Endpoint, connErr.Err)
	}

	return fmt.Errorf("❌ %s", errStr)
}
