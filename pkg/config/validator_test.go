package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
		field   string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			section: "server",
			field:   "port",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			section: "database",
			field:   "host",
		},
		{
			name:    "missing bucket",
			mutate:  func(c *Config) { c.Storage.Bucket = "" },
			section: "storage",
			field:   "bucket",
		},
		{
			name:    "no brokers",
			mutate:  func(c *Config) { c.Bus.Brokers = nil },
			section: "bus",
			field:   "brokers",
		},
		{
			name:    "zero embedding dim",
			mutate:  func(c *Config) { c.Inference.EmbeddingDim = 0 },
			section: "inference",
			field:   "embedding_dim",
		},
		{
			name:    "unknown chunking strategy",
			mutate:  func(c *Config) { c.Chunking.Strategy = "recursive" },
			section: "chunking",
			field:   "strategy",
		},
		{
			name:    "target below min",
			mutate:  func(c *Config) { c.Chunking.TargetSize = 50 },
			section: "chunking",
			field:   "target_size",
		},
		{
			name:    "target above max",
			mutate:  func(c *Config) { c.Chunking.TargetSize = 2048 },
			section: "chunking",
			field:   "target_size",
		},
		{
			name:    "overlap not below target",
			mutate:  func(c *Config) { c.Chunking.OverlapTokens = 512 },
			section: "chunking",
			field:   "overlap_tokens",
		},
		{
			name:    "relevance score above one",
			mutate:  func(c *Config) { c.Retrieval.MinRelevanceScore = 1.5 },
			section: "retrieval",
			field:   "min_relevance_score",
		},
		{
			name:    "dedup threshold negative",
			mutate:  func(c *Config) { c.Answering.DeduplicationThreshold = -0.1 },
			section: "answering",
			field:   "deduplication_threshold",
		},
		{
			name:    "unknown translation strategy",
			mutate:  func(c *Config) { c.Language.DefaultStrategy = "mirror" },
			section: "language",
			field:   "default_strategy",
		},
		{
			name:    "unknown pipeline stage",
			mutate:  func(c *Config) { c.Pipeline.Stages = []string{"extraction", "language"} },
			section: "pipeline",
			field:   "stages",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Pipeline.Workers = 0 },
			section: "pipeline",
			field:   "workers",
		},
		{
			name:    "zero retention sweep interval",
			mutate:  func(c *Config) { c.Retention.SweepInterval = 0 },
			section: "retention",
			field:   "sweep_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.section, verr.Section)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
