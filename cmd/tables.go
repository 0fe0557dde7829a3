package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"catmigrate/catalog"
	"catmigrate/config"
	"catmigrate/migrate"
)

func newTablesCmd() *cobra.Command {
	tablesCmd := &cobra.Command{
		Use:           "tables",
		Short:         "List the tables a migration from the source would copy",
		Args:          cobra.NoArgs,
		RunE:          runTables,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	tablesCmd.Flags().String("source", "", "Source in format client/env (required)")
	tablesCmd.MarkFlagRequired("source")
	tablesCmd.Flags().Bool("ask-password", false, "Prompt for a password missing from the config")
	tablesCmd.Flags().Bool("verbose", false, "Enable verbose logging")
	return tablesCmd
}

func runTables(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	askPassword, _ := cmd.Flags().GetBool("ask-password")
	verbose, _ := cmd.Flags().GetBool("verbose")
	setVerbosity(verbose)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	params, err := resolveConnection(cfg, source, askPassword)
	if err != nil {
		return formatError(fmt.Errorf("invalid source: %w", err))
	}

	tables, err := migrate.NewMigrator(params, catalog.ConnectionParams{}, migrate.Options{}).ListTables(cmd.Context())
	if err != nil {
		return formatError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📋 %d table(s) in %s\n", len(tables), params.Endpoint())
	for _, t := range tables {
		fmt.Fprintf(out, "  - %s\n", t)
	}
	return nil
}

func newConnectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List the configured client/env connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", config.Path())
			for _, key := range cfg.GetConfiguredConnections() {
				fmt.Fprintf(out, "  %-24s %s\n", key, cfg.Connections[key].Endpoint())
			}
			return nil
		},
	}
}

func newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the supported catalog drivers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range catalog.Drivers() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
