package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"catmigrate/catalog"
	"catmigrate/dynamodb"
)

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		name        string
		connStr     string
		expectedErr bool
		expected    *ConnectionString
	}{
		{
			name:    "valid connection string",
			connStr: "acme/prod",
			expected: &ConnectionString{
				Client: "acme",
				Env:    "prod",
			},
		},
		{
			name:    "valid with different values",
			connStr: "beta/staging",
			expected: &ConnectionString{
				Client: "beta",
				Env:    "staging",
			},
		},
		{
			name:        "invalid - no slash",
			connStr:     "acmeprod",
			expectedErr: true,
		},
		{
			name:        "invalid - multiple slashes",
			connStr:     "acme/prod/extra",
			expectedErr: true,
		},
		{
			name:        "invalid - empty",
			connStr:     "",
			expectedErr: true,
		},
		{
			name:        "invalid - only slash",
			connStr:     "/",
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseConnectionString(tt.connStr)

			if tt.expectedErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			if *result != *tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, result)
			}
			if result.String() != tt.connStr {
				t.Errorf("Expected %s, got %s", tt.connStr, result.String())
			}
		})
	}
}

func TestConnectionMethods(t *testing.T) {
	config := &Config{}

	params := catalog.ConnectionParams{
		Driver:    "snowflake",
		User:      "LOADER",
		Password:  "from-file",
		Account:   "xy12345",
		Warehouse: "WH",
		Database:  "RAW",
		Schema:    "PUBLIC",
	}
	config.SetConnection("test", "local", params)

	retrieved, err := config.GetConnection("test", "local")
	if err != nil {
		t.Fatalf("Unexpected error getting connection: %v", err)
	}
	if retrieved != params {
		t.Error("Retrieved connection doesn't match set connection")
	}

	if _, err := config.GetConnection("nonexistent", "config"); err == nil {
		t.Error("Expected error for non-existent connection")
	}
}

func TestPasswordFromEnvironment(t *testing.T) {
	config := &Config{}
	config.SetConnection("acme-co", "prod", catalog.ConnectionParams{User: "u", Password: "from-file"})

	t.Setenv("CATMIGRATE_ACME_CO_PROD_PASSWORD", "from-env")

	params, err := config.GetConnection("acme-co", "prod")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if params.Password != "from-env" {
		t.Errorf("Expected password from environment, got %q", params.Password)
	}
	if config.Connections["acme-co/prod"].Password != "from-file" {
		t.Error("Stored config should not be modified")
	}
}

func TestPasswordEnv(t *testing.T) {
	if got := PasswordEnv("acme.io", "Stage-2"); got != "CATMIGRATE_ACME_IO_STAGE_2_PASSWORD" {
		t.Errorf("Unexpected variable name %s", got)
	}
}

func TestGetConfiguredConnections(t *testing.T) {
	config := &Config{
		Connections: map[string]catalog.ConnectionParams{
			"client2/local":   {},
			"client1/staging": {},
			"client1/prod":    {},
		},
	}

	expected := []string{"client1/prod", "client1/staging", "client2/local"}
	if got := config.GetConfiguredConnections(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		name     string
		defaults int
		flag     int
		expected int
		wantErr  bool
	}{
		{name: "built-in default", expected: 2000},
		{name: "config default", defaults: 500, expected: 500},
		{name: "flag wins", defaults: 500, flag: 10000, expected: 10000},
		{name: "lower bound", flag: 100, expected: 100},
		{name: "too small", flag: 99, wantErr: true},
		{name: "too large", flag: 10001, wantErr: true},
		{name: "bad config default", defaults: 50, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Defaults: Defaults{BatchSize: tt.defaults}}
			got, err := config.BatchSize(tt.flag)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWorkers(t *testing.T) {
	config := &Config{}
	if got, _ := config.Workers(0); got != 4 {
		t.Errorf("Expected 4 workers by default, got %d", got)
	}
	config.Defaults.Workers = 8
	if got, _ := config.Workers(0); got != 8 {
		t.Errorf("Expected 8 workers from config, got %d", got)
	}
	if _, err := config.Workers(-1); err == nil {
		t.Error("Expected error for negative workers")
	}
}

func TestConfigSerialization(t *testing.T) {
	config := &Config{
		Connections: map[string]catalog.ConnectionParams{
			"test/local": {
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "password",
				Database: "testdb",
			},
		},
		Defaults: Defaults{BatchSize: 1000, Workers: 2},
		Report: Report{
			DynamoDB: &dynamodb.Config{Region: "us-east-1", TableName: "catmigrate-runs"},
		},
	}

	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := config.SaveTo(path); err != nil {
				t.Fatalf("Failed to save config: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("Failed to stat config: %v", err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
			}

			loaded, err := LoadFrom(path)
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}
			if !reflect.DeepEqual(loaded, config) {
				t.Errorf("Config was corrupted during serialization:\n%+v\n%+v", config, loaded)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `connections:
  acme/prod:
    driver: snowflake
    user: LOADER
    account: xy12345
    database: RAW
    schema: PUBLIC
defaults:
  batch_size: 5000
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	params, err := config.GetConnection("acme", "prod")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if params.Account != "xy12345" || params.Schema != "PUBLIC" {
		t.Errorf("Unexpected connection %+v", params)
	}
	if config.Defaults.BatchSize != 5000 {
		t.Errorf("Expected batch size 5000, got %d", config.Defaults.BatchSize)
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catmigrate", "config.json")
	t.Setenv(PathEnv, path)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected default config to be written: %v", err)
	}
	if len(config.GetConfiguredConnections()) == 0 {
		t.Error("Expected example connections in default config")
	}

	again, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error reloading: %v", err)
	}
	if !reflect.DeepEqual(again, config) {
		t.Error("Reloaded config differs from the created default")
	}
}

func TestLoadFromInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("CATMIGRATE_TEST_LOADENV=loaded\n"), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("CATMIGRATE_TEST_LOADENV", "")
	os.Unsetenv("CATMIGRATE_TEST_LOADENV")

	if err := LoadEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := os.Getenv("CATMIGRATE_TEST_LOADENV"); got != "loaded" {
		t.Errorf("Expected variable from .env, got %q", got)
	}
}
