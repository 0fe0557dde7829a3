package cmd

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catmigrate/catalog"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name          string
		inputError    error
		expectedStart string
	}{
		{
			name:          "connection refused error",
			inputError:    errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			expectedStart: "❌ Cannot connect to the catalog",
		},
		{
			name:          "mysql access denied",
			inputError:    errors.New("Error 1045: Access denied for user 'root'"),
			expectedStart: "❌ Authentication failed",
		},
		{
			name:          "snowflake bad credentials",
			inputError:    errors.New("390100 (08004): Incorrect username or password was specified."),
			expectedStart: "❌ Authentication failed",
		},
		{
			name:          "unknown database error",
			inputError:    errors.New("Database 'RAW' does not exist or not authorized."),
			expectedStart: "❌ Database or schema does not exist",
		},
		{
			name: "other connection error",
			inputError: &catalog.ConnectionError{
				Endpoint: "sqlite://@/x.db.main",
				Err:      errors.New("unable to open database file"),
			},
			expectedStart: "❌ Cannot connect to sqlite://@/x.db.main: unable to open database file",
		},
		{
			name:          "generic error",
			inputError:    errors.New("some other error"),
			expectedStart: "❌ some other error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatError(tt.inputError)

			if !strings.HasPrefix(result.Error(), tt.expectedStart) {
				t.Errorf("Expected error to start with '%s', got '%s'",
					tt.expectedStart, result.Error())
			}
		})
	}
}

func TestCommandConfiguration(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"migrate", "tables", "connections", "drivers"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Expected %s command, got %v (%v)", name, cmd, err)
		}
	}

	migrateCmd, _, _ := root.Find([]string{"migrate"})
	for _, flag := range []string{"source", "dest", "batch-size", "workers", "tables", "interactive", "ask-password", "report", "metrics-addr", "verbose"} {
		if migrateCmd.Flags().Lookup(flag) == nil {
			t.Errorf("Expected migrate flag --%s", flag)
		}
	}
	if !migrateCmd.SilenceUsage || !migrateCmd.SilenceErrors {
		t.Error("Expected migrate to silence usage and errors")
	}
}

// writeTestConfig points the config at a YAML file with two SQLite
// connections and returns their database paths.
func writeTestConfig(t *testing.T) (source, target string) {
	t.Helper()
	dir := t.TempDir()
	source = filepath.Join(dir, "source.db")
	target = filepath.Join(dir, "target.db")

	cfg := fmt.Sprintf(`connections:
  shop/prod:
    driver: sqlite
    database: %s
  shop/copy:
    driver: sqlite
    database: %s
defaults:
  batch_size: 100
  workers: 2
`, source, target)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("CATMIGRATE_CONFIG", path)
	return source, target
}

func seed(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	source, target := writeTestConfig(t)
	seed(t, source,
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO customers VALUES (1, 'ada'), (2, 'grace')",
		"CREATE TABLE events (kind TEXT)",
	)

	out, err := execute(t, "migrate", "--source", "shop/prod", "--dest", "shop/copy")
	if err != nil {
		t.Fatalf("Unexpected error: %v\n%s", err, out)
	}

	for _, want := range []string{
		"✅ Found 2 tables: [customers, events]",
		"✅ 2 rows inserted for table: customers",
		"✅ Data migration completed for table: customers (2 rows in 1 batches)",
		"✅ Data migration completed for table: events (0 rows in 0 batches)",
		"2 succeeded, 0 failed, 2 rows copied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	db, err := sql.Open("sqlite", target)
	if err != nil {
		t.Fatalf("Failed to open target: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow("SELECT count(*) FROM customers").Scan(&count); err != nil {
		t.Fatalf("Failed to count target rows: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows in target, got %d", count)
	}
}

func TestMigrateCommandValidation(t *testing.T) {
	writeTestConfig(t)

	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{
			name:     "missing dest",
			args:     []string{"migrate", "--source", "shop/prod"},
			errorMsg: "required flag",
		},
		{
			name:     "batch size too small",
			args:     []string{"migrate", "--source", "shop/prod", "--dest", "shop/copy", "--batch-size", "10"},
			errorMsg: "out of range",
		},
		{
			name:     "bad connection string",
			args:     []string{"migrate", "--source", "shop", "--dest", "shop/copy"},
			errorMsg: "invalid source",
		},
		{
			name:     "unknown connection",
			args:     []string{"migrate", "--source", "shop/prod", "--dest", "shop/nowhere"},
			errorMsg: "invalid destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestTablesCommand(t *testing.T) {
	source, _ := writeTestConfig(t)
	seed(t, source,
		"CREATE TABLE b_table (id INTEGER)",
		"CREATE TABLE a_table (id INTEGER)",
	)

	out, err := execute(t, "tables", "--source", "shop/prod")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "📋 2 table(s)") || strings.Index(out, "a_table") > strings.Index(out, "b_table") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestDriversCommand(t *testing.T) {
	out, err := execute(t, "drivers")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := "mysql\npostgres\nsnowflake\nsqlite\nsqlserver\n"
	if out != expected {
		t.Errorf("Expected drivers:\n%s\ngot:\n%s", expected, out)
	}
}

func TestConnectionsCommand(t *testing.T) {
	writeTestConfig(t)

	out, err := execute(t, "connections")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "shop/copy") || !strings.Contains(out, "shop/prod") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}
