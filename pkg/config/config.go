// Package config loads service configuration from config.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for emsight-engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Refiner is the fast model used for conversational refinement.
	Refiner RefinerConfig `yaml:"refiner"`

	// Generator is the model used for query generation.
	Generator GeneratorConfig `yaml:"generator"`

	// Embedding is the endpoint used for golden-example retrieval.
	// Optional; retrieval degrades to keyword overlap without it.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Warehouse is the read-only reporting database.
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// Documents are the semantic context inputs.
	Documents DocumentsConfig `yaml:"documents"`

	// Session holds conversation-state settings.
	Session SessionConfig `yaml:"session"`

	// Generation holds pipeline limits.
	Generation GenerationConfig `yaml:"generation"`
}

// RefinerConfig holds the refinement model endpoint.
type RefinerConfig struct {
	Provider       string  `yaml:"provider" env:"REFINER_PROVIDER" env-default:"openai"`
	Endpoint       string  `yaml:"endpoint" env:"REFINER_ENDPOINT" env-default:"https://api.groq.com/openai/v1"`
	Model          string  `yaml:"model" env:"REFINER_MODEL" env-default:"llama-3.3-70b-versatile"`
	APIKey         string  `yaml:"-" env:"REFINER_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"REFINER_TIMEOUT_SECONDS" env-default:"8"`
	Temperature    float64 `yaml:"temperature" env:"REFINER_TEMPERATURE" env-default:"0.1"`
}

// GeneratorConfig holds the generation model endpoint.
type GeneratorConfig struct {
	Provider       string  `yaml:"provider" env:"GENERATOR_PROVIDER" env-default:"openai"`
	Endpoint       string  `yaml:"endpoint" env:"GENERATOR_ENDPOINT" env-default:"http://localhost:11434/v1"`
	Model          string  `yaml:"model" env:"GENERATOR_MODEL" env-default:"sqlcoder"`
	APIKey         string  `yaml:"-" env:"GENERATOR_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"GENERATOR_TIMEOUT_SECONDS" env-default:"60"`
	Temperature    float64 `yaml:"temperature" env:"GENERATOR_TEMPERATURE" env-default:"0.0"`
	MaxTokens      int     `yaml:"max_tokens" env:"GENERATOR_MAX_TOKENS" env-default:"2048"`
}

// EmbeddingConfig holds the embedding endpoint for semantic retrieval.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey   string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
}

// IsAvailable returns true if semantic retrieval is configured.
func (c *EmbeddingConfig) IsAvailable() bool {
	return c.Endpoint != ""
}

// WarehouseConfig holds the reporting database connection.
type WarehouseConfig struct {
	Host                string `yaml:"host" env:"WAREHOUSE_HOST" env-default:"localhost"`
	Port                int    `yaml:"port" env:"WAREHOUSE_PORT" env-default:"5432"`
	User                string `yaml:"user" env:"WAREHOUSE_USER" env-default:"emsight"`
	Password            string `yaml:"-" env:"WAREHOUSE_PASSWORD"` // Secret - not in YAML
	Database            string `yaml:"database" env:"WAREHOUSE_DATABASE" env-default:"ems"`
	SSLMode             string `yaml:"ssl_mode" env:"WAREHOUSE_SSLMODE" env-default:"disable"`
	MaxConnections      int32  `yaml:"max_connections" env:"WAREHOUSE_MAX_CONNECTIONS" env-default:"10"`
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds" env:"WAREHOUSE_QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// ConnectionString returns a PostgreSQL connection string. The host is
// rewritten for Docker when the service runs containerized against a
// host-local warehouse.
func (c *WarehouseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, ResolveHostForDocker(c.Host), c.Port, c.Database, c.SSLMode,
	)
}

// DocumentsConfig holds paths to the semantic context documents.
type DocumentsConfig struct {
	RulesPath    string `yaml:"rules_path" env:"RULES_DOC_PATH" env-default:"data/semantic_rules.md"`
	GlossaryPath string `yaml:"glossary_path" env:"GLOSSARY_DOC_PATH" env-default:"data/business_glossary.md"`
	SchemaPath   string `yaml:"schema_path" env:"SCHEMA_METADATA_PATH" env-default:"data/schemas.json"`
	GoldenPath   string `yaml:"golden_path" env:"GOLDEN_QUERIES_PATH" env-default:"data/golden_queries.json"`
	TriggersPath string `yaml:"triggers_path" env:"COMPRESSOR_TRIGGERS_PATH" env-default:""`
	FeedbackDir  string `yaml:"feedback_dir" env:"FEEDBACK_DIR" env-default:"data/feedback"`
	ErrorLogDir  string `yaml:"error_log_dir" env:"SQL_ERROR_LOG_DIR" env-default:"data/sql_error_logs"`
}

// SessionConfig holds conversation-state settings.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" env:"SESSION_TTL_MINUTES" env-default:"120"`
}

// TTL returns the session idle timeout as a duration.
func (c *SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// GenerationConfig holds pipeline limits.
type GenerationConfig struct {
	MaxRetries int `yaml:"max_retries" env:"GENERATION_MAX_RETRIES" env-default:"2"`
	RowLimit   int `yaml:"row_limit" env:"GENERATION_ROW_LIMIT" env-default:"1000"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml is absent, environment variables and
// defaults alone apply. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Refiner.Endpoint == "" {
		return fmt.Errorf("refiner endpoint is required")
	}
	if c.Generator.Endpoint == "" {
		return fmt.Errorf("generator endpoint is required")
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation max_retries must not be negative")
	}
	return nil
}
