package config

import (
	"fmt"
	"slices"
	"time"
)

var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate checks the configuration for consistency. It returns the first
// problem found, wrapped around one of the package sentinel errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Provider != ProviderGemini && c.Provider != ProviderOllama {
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (want 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if err := c.Digest.validate(); err != nil {
		return err
	}
	if err := c.Search.validate(); err != nil {
		return err
	}
	return c.Ingest.validate()
}

func (d *DigestConfig) validate() error {
	if d.QualityThreshold < 0 || d.QualityThreshold > 1 {
		return fmt.Errorf("%w: quality_threshold %v (want 0-1)", ErrInvalidThreshold, d.QualityThreshold)
	}
	if d.SimilarityThreshold < 0 || d.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold %v (want 0-1)", ErrInvalidThreshold, d.SimilarityThreshold)
	}
	if d.FaithfulnessWeight <= 0 || d.RelevanceWeight <= 0 || d.PrecisionWeight <= 0 {
		return fmt.Errorf("%w: quality weights must be positive", ErrInvalidWeights)
	}
	if d.RunBudget <= 0 {
		return fmt.Errorf("%w: run_budget %v", ErrInvalidBudget, d.RunBudget)
	}
	for name, t := range map[string]time.Duration{
		"embed_timeout":    d.EmbedTimeout,
		"generate_timeout": d.GenerateTimeout,
		"judge_timeout":    d.JudgeTimeout,
		"query_timeout":    d.QueryTimeout,
	} {
		if t <= 0 {
			return fmt.Errorf("%w: %s %v", ErrInvalidBudget, name, t)
		}
		if t >= d.RunBudget {
			return fmt.Errorf("%w: %s %v exceeds run_budget %v", ErrInvalidBudget, name, t, d.RunBudget)
		}
	}
	if d.EvalWorkers < 1 || d.EvalWorkers > 20 {
		return fmt.Errorf("%w: eval_workers %d (want 1-20)", ErrInvalidWorkers, d.EvalWorkers)
	}
	if d.TargetInsights < 1 {
		return fmt.Errorf("%w: target_insights %d", ErrInvalidWeights, d.TargetInsights)
	}
	if d.MaxContextChunks < 1 {
		return fmt.Errorf("%w: max_context_chunks %d", ErrInvalidWeights, d.MaxContextChunks)
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.SimilarityWeight < 0 || s.RecencyWeight < 0 || s.SimilarityWeight+s.RecencyWeight <= 0 {
		return fmt.Errorf("%w: search blend %v/%v", ErrInvalidWeights, s.SimilarityWeight, s.RecencyWeight)
	}
	if s.RecencyHalfLife <= 0 {
		return fmt.Errorf("%w: recency_half_life %v", ErrInvalidBudget, s.RecencyHalfLife)
	}
	if s.DefaultLimit < 1 {
		return fmt.Errorf("%w: default_limit %d", ErrInvalidWeights, s.DefaultLimit)
	}
	return nil
}

func (i *IngestConfig) validate() error {
	if i.MaxItemsPerSource < 1 {
		return fmt.Errorf("%w: max_items_per_source %d", ErrInvalidWeights, i.MaxItemsPerSource)
	}
	if i.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: requests_per_second %v", ErrInvalidBudget, i.RequestsPerSecond)
	}
	if i.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch_timeout %v", ErrInvalidBudget, i.FetchTimeout)
	}
	if i.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidChunking, i.ChunkSize)
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d with chunk_size %d", ErrInvalidChunking, i.ChunkOverlap, i.ChunkSize)
	}
	return nil
}
