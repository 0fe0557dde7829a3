package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"catmigrate/catalog"
	"catmigrate/dynamodb"
	"catmigrate/migrate"
)

const (
	MinBatchSize = 100
	MaxBatchSize = 10000

	// PathEnv overrides the config file location.
	PathEnv = "CATMIGRATE_CONFIG"
)

type Config struct {
	Connections map[string]catalog.ConnectionParams `json:"connections" yaml:"connections"`
	Defaults    Defaults                            `json:"defaults" yaml:"defaults"`
	Report      Report                              `json:"report,omitempty" yaml:"report,omitempty"`
}

type Defaults struct {
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Workers   int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// Report configures where run results are recorded.
type Report struct {
	DynamoDB *dynamodb.Config `json:"dynamodb,omitempty" yaml:"dynamodb,omitempty"`
}

type ConnectionString struct {
	Client string
	Env    string
}

func (c ConnectionString) String() string {
	return c.Client + "/" + c.Env
}

func ParseConnectionString(connStr string) (*ConnectionString, error) {
	parts := strings.Split(connStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid connection string format: %s (expected client/env)", connStr)
	}

	return &ConnectionString{
		Client: parts[0],
		Env:    parts[1],
	}, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func LoadConfig() (*Config, error) {
	configPath := Path()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return createDefaultConfig(configPath)
	}
	return LoadFrom(configPath)
}

func LoadFrom(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(configPath) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConnection returns the connection stored under client/env. A password
// in CATMIGRATE_<CLIENT>_<ENV>_PASSWORD takes precedence over the file.
func (c *Config) GetConnection(client, env string) (catalog.ConnectionParams, error) {
	key := fmt.Sprintf("%s/%s", client, env)
	params, exists := c.Connections[key]
	if !exists {
		return catalog.ConnectionParams{}, fmt.Errorf("connection config not found for %s", key)
	}
	if pw, ok := os.LookupEnv(PasswordEnv(client, env)); ok {
		params.Password = pw
	}
	return params, nil
}

func (c *Config) SetConnection(client, env string, params catalog.ConnectionParams) {
	if c.Connections == nil {
		c.Connections = make(map[string]catalog.ConnectionParams)
	}
	key := fmt.Sprintf("%s/%s", client, env)
	c.Connections[key] = params
}

// GetConfiguredConnections returns the sorted client/env keys.
func (c *Config) GetConfiguredConnections() []string {
	keys := make([]string, 0, len(c.Connections))
	for key := range c.Connections {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// BatchSize resolves the effective batch size from a flag value, the config
// defaults and the built-in default, and checks it is within bounds.
func (c *Config) BatchSize(flag int) (int, error) {
	size := flag
	if size == 0 {
		size = c.Defaults.BatchSize
	}
	if size == 0 {
		size = migrate.DefaultBatchSize
	}
	if size < MinBatchSize || size > MaxBatchSize {
		return 0, fmt.Errorf("batch size %d out of range (%d-%d)", size, MinBatchSize, MaxBatchSize)
	}
	return size, nil
}

func (c *Config) Workers(flag int) (int, error) {
	workers := flag
	if workers == 0 {
		workers = c.Defaults.Workers
	}
	if workers == 0 {
		workers = migrate.DefaultWorkers
	}
	if workers < 1 {
		return 0, fmt.Errorf("workers must be at least 1, got %d", workers)
	}
	return workers, nil
}

// PasswordEnv names the environment variable holding the password for
// client/env, e.g. CATMIGRATE_ACME_PROD_PASSWORD.
func PasswordEnv(client, env string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z':
				return r - 'a' + 'A'
			case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			default:
				return '_'
			}
		}, s)
	}
	return fmt.Sprintf("CATMIGRATE_%s_%s_PASSWORD", clean(client), clean(env))
}

// Path returns $CATMIGRATE_CONFIG or ~/.catmigrate/config.json.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".catmigrate/config.json"
	}
	return filepath.Join(homeDir, ".catmigrate", "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func createDefaultConfig(configPath string) (*Config, error) {
	config := &Config{
		Connections: map[string]catalog.ConnectionParams{
			"example/prod": {
				Driver:    "snowflake",
				User:      "LOADER",
				Account:   "xy12345.us-east-1",
				Warehouse: "COMPUTE_WH",
				Role:      "SYSADMIN",
				Database:  "RAW",
				Schema:    "PUBLIC",
			},
			"example/local": {
				Driver:   "sqlite",
				Database: "example.db",
				Schema:   "main",
			},
		},
		Defaults: Defaults{
			BatchSize: migrate.DefaultBatchSize,
			Workers:   migrate.DefaultWorkers,
		},
	}

	if err := config.SaveTo(configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}

	fmt.Printf("Created default config at %s\n", configPath)
	fmt.Println("Please edit the config file to add your catalog connections.")

	return config, nil
}
