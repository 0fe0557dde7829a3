package cmd

import (
	"github.com/spf13/cobra"

	"catmigrate/config"

	// Registered catalog dialects.
	_ "catmigrate/mysql"
	_ "catmigrate/postgres"
	_ "catmigrate/snowflake"
	_ "catmigrate/sqlite"
	_ "catmigrate/sqlserver"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catmigrate",
		Short: "Copy every table of one database schema into another",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnv(envFile)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "Environment file with connection secrets")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTablesCmd())
	root.AddCommand(newConnectionsCmd())
	root.AddCommand(newDriversCmd())
	return root
}

func Execute() error {
	return rootCmd.Execute()
}
