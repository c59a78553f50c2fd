package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the semantic engine.
// Values come from config.yaml with environment variable overrides; secrets
// (passwords, signing keys, warehouse tokens) must come from the environment
// only (yaml:"-" fields).
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8084"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Source    SourceConfig    `yaml:"source"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Inference InferenceConfig `yaml:"inference"`
}

// SourceConfig points at the workspace's PostgreSQL analytics source, the
// database profiled and queried on behalf of users. Distinct from Database,
// which is this service's own metadata store.
type SourceConfig struct {
	// DSN carries credentials. Secret - env only.
	DSN string `yaml:"-" env:"SOURCE_DATABASE_URL"`
}

// AuthConfig holds the boundary-auth settings. Token issuance happens in the
// platform's auth service; this core only verifies workspace/role claims.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are validated.
	// Set to false for local development without the auth service.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// SigningKey verifies HS256 workspace tokens. Secret - env only.
	SigningKey string `yaml:"-" env:"AUTH_SIGNING_KEY"`
}

// DatabaseConfig holds PostgreSQL settings for the workspace store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"semantic"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"semantic_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// WarehouseConfig holds settings for the BigQuery-class warehouse engine.
type WarehouseConfig struct {
	// BaseURL is the warehouse jobs API endpoint. Overridable for tests.
	BaseURL string `yaml:"base_url" env:"WAREHOUSE_BASE_URL" env-default:"https://bigquery.googleapis.com/bigquery/v2"`

	// ProjectID is the billing project jobs are submitted under.
	ProjectID string `yaml:"project_id" env:"WAREHOUSE_PROJECT_ID" env-default:""`

	// AccessToken is a static bearer token for the warehouse API. When the
	// platform's token broker is wired, it replaces this. Secret - env only.
	AccessToken string `yaml:"-" env:"WAREHOUSE_ACCESS_TOKEN"`

	// PollInitialDelay is the first job-status poll interval.
	PollInitialDelay time.Duration `yaml:"poll_initial_delay" env:"WAREHOUSE_POLL_INITIAL_DELAY" env-default:"250ms"`
	// PollMaxDelay caps the exponential poll backoff.
	PollMaxDelay time.Duration `yaml:"poll_max_delay" env:"WAREHOUSE_POLL_MAX_DELAY" env-default:"5s"`
	// PollTimeout bounds total time waiting for a job to complete.
	PollTimeout time.Duration `yaml:"poll_timeout" env:"WAREHOUSE_POLL_TIMEOUT" env-default:"5m"`

	// PageSize is the row count requested per result page.
	PageSize int `yaml:"page_size" env:"WAREHOUSE_PAGE_SIZE" env-default:"5000"`
	// FetchConcurrency bounds parallel result-page downloads.
	FetchConcurrency int `yaml:"fetch_concurrency" env:"WAREHOUSE_FETCH_CONCURRENCY" env-default:"4"`
}

// InferenceConfig holds tunables for relationship inference.
type InferenceConfig struct {
	// OverlapSampleLimit bounds distinct values sampled per side when
	// profiling a column pair.
	OverlapSampleLimit int `yaml:"overlap_sample_limit" env:"INFERENCE_OVERLAP_SAMPLE_LIMIT" env-default:"20000"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	if cfg.Auth.EnableVerification && cfg.Auth.SigningKey == "" {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is required when auth verification is enabled")
	}
	return cfg, nil
}
