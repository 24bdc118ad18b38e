// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (COACH_ prefix, runtime override)
//  2. Config file (~/.coach/config.yaml)
//  3. Default values
//
// Main categories:
//   - AI: provider, model, embedder
//   - Storage: PostgreSQL connection
//   - Digest: quality gate, run budget, evaluation concurrency
//   - Search: similarity/recency blend for insight search
//   - Ingest: fetch limits and chunking window
//
// Sensitive fields (the PostgreSQL password) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is unknown.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidThreshold indicates a score threshold is outside [0, 1].
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidWeights indicates blend or quality weights do not form a valid mix.
	ErrInvalidWeights = errors.New("invalid weights")

	// ErrInvalidBudget indicates a duration setting is non-positive or
	// inconsistent with the run budget.
	ErrInvalidBudget = errors.New("invalid budget")

	// ErrInvalidWorkers indicates the evaluation worker ceiling is out of range.
	ErrInvalidWorkers = errors.New("invalid workers")

	// ErrInvalidChunking indicates the chunk window/overlap pair is unusable.
	ErrInvalidChunking = errors.New("invalid chunking")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses vector(768).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default generation model.
	DefaultModelName = "gemini-2.5-flash"

	// EmbedDimension is the fixed embedding width for all stored vectors.
	EmbedDimension int32 = 768
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Digest pipeline configuration
	Digest DigestConfig `mapstructure:"digest" json:"digest"`

	// Insight search configuration
	Search SearchConfig `mapstructure:"search" json:"search"`

	// Ingestion configuration
	Ingest IngestConfig `mapstructure:"ingest" json:"ingest"`

	// Tracing configuration (optional, off by default)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// DigestConfig tunes the digest orchestration pipeline.
type DigestConfig struct {
	// QualityThreshold is the composite score a candidate must reach
	// (inclusive) to be accepted.
	QualityThreshold float64 `mapstructure:"quality_threshold" json:"quality_threshold"`

	// Weights for the three quality dimensions. They must be positive and
	// are normalized before use; equal weighting is the default.
	FaithfulnessWeight float64 `mapstructure:"faithfulness_weight" json:"faithfulness_weight"`
	RelevanceWeight    float64 `mapstructure:"relevance_weight" json:"relevance_weight"`
	PrecisionWeight    float64 `mapstructure:"precision_weight" json:"precision_weight"`

	// SimilarityThreshold is the retrieval floor for content chunks.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// TargetInsights is the number of insights requested per run (clamped 5-7).
	TargetInsights int `mapstructure:"target_insights" json:"target_insights"`

	// MaxContextChunks caps the retrieval union handed to the generator.
	MaxContextChunks int `mapstructure:"max_context_chunks" json:"max_context_chunks"`

	// RunBudget is the wall-clock limit for one orchestration run.
	RunBudget time.Duration `mapstructure:"run_budget" json:"run_budget"`

	// EvalWorkers bounds concurrent candidate evaluations.
	EvalWorkers int `mapstructure:"eval_workers" json:"eval_workers"`

	// Per-call timeouts. Each must be shorter than RunBudget.
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout" json:"embed_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" json:"generate_timeout"`
	JudgeTimeout    time.Duration `mapstructure:"judge_timeout" json:"judge_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" json:"query_timeout"`
}

// SearchConfig tunes insight search ranking.
// Relevance = SimilarityWeight*cosine + RecencyWeight*exp(-lambda*age),
// where lambda is derived from RecencyHalfLife.
type SearchConfig struct {
	SimilarityWeight float64       `mapstructure:"similarity_weight" json:"similarity_weight"`
	RecencyWeight    float64       `mapstructure:"recency_weight" json:"recency_weight"`
	RecencyHalfLife  time.Duration `mapstructure:"recency_half_life" json:"recency_half_life"`
	DefaultLimit     int           `mapstructure:"default_limit" json:"default_limit"`
}

// IngestConfig tunes content fetching and chunking.
type IngestConfig struct {
	// MaxItemsPerSource caps items taken from one RSS feed per ingest.
	MaxItemsPerSource int `mapstructure:"max_items_per_source" json:"max_items_per_source"`

	// RequestsPerSecond rate-limits outbound HTTP fetches.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`

	// FetchTimeout bounds a single HTTP fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout"`

	// ChunkSize is the fixed chunk window in tokens; ChunkOverlap is the
	// number of tokens shared between consecutive chunks.
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
}

// TracingConfig configures optional OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// MarshalJSON masks sensitive fields.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(*c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	return json.Marshal(masked)
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// Load reads configuration from defaults, the config file, and environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			// Missing file is fine: defaults + env apply.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configDir returns ~/.coach, creating it with restricted permissions.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".coach")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "coach")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "coach")
	v.SetDefault("postgres_ssl_mode", "prefer")

	v.SetDefault("digest.quality_threshold", 0.7)
	v.SetDefault("digest.faithfulness_weight", 1.0)
	v.SetDefault("digest.relevance_weight", 1.0)
	v.SetDefault("digest.precision_weight", 1.0)
	v.SetDefault("digest.similarity_threshold", 0.25)
	v.SetDefault("digest.target_insights", 6)
	v.SetDefault("digest.max_context_chunks", 15)
	v.SetDefault("digest.run_budget", 30*time.Second)
	v.SetDefault("digest.eval_workers", 20)
	v.SetDefault("digest.embed_timeout", 10*time.Second)
	v.SetDefault("digest.generate_timeout", 20*time.Second)
	v.SetDefault("digest.judge_timeout", 8*time.Second)
	v.SetDefault("digest.query_timeout", 10*time.Second)

	v.SetDefault("search.similarity_weight", 0.7)
	v.SetDefault("search.recency_weight", 0.3)
	v.SetDefault("search.recency_half_life", 7*24*time.Hour)
	v.SetDefault("search.default_limit", 10)

	v.SetDefault("ingest.max_items_per_source", 10)
	v.SetDefault("ingest.requests_per_second", 2.0)
	v.SetDefault("ingest.fetch_timeout", 15*time.Second)
	v.SetDefault("ingest.chunk_size", 512)
	v.SetDefault("ingest.chunk_overlap", 50)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "coach")
}
