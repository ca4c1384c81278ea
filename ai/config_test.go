package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://localhost:9000"),
		WithEmbeddingModel("custom-embed"),
		WithExtractorModel("custom-extract"),
		WithDimension(768),
		WithMinImportance(8),
	)

	assert.Equal(t, "http://localhost:9000", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:9000", cfg.ExtractorHost)
	assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
	assert.Equal(t, "custom-extract", cfg.ExtractorModel)
	assert.Equal(t, 768, cfg.Dimension)
	assert.Equal(t, 8, cfg.MinImportance)
}

func TestConfigNormalize(t *testing.T) {
	cfg := NewConfig(WithHost("http://localhost:11434"))
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)

	// Already normalized hosts are left alone.
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)

	trailing := NewConfig(WithEmbeddingHost("http://localhost:11434/"))
	trailing.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", trailing.EmbeddingHost)
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingModel = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("extractor not required when extraction disabled", func(t *testing.T) {
		cfg := NewConfig(WithConceptExtraction(false))
		cfg.ExtractorHost = ""
		cfg.ExtractorModel = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("extractor required when extraction enabled", func(t *testing.T) {
		cfg := NewConfig(WithConceptExtraction(true))
		cfg.ExtractorModel = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("importance bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinImportance = 0
		assert.Error(t, cfg.Validate())
		cfg.MinImportance = 11
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative dimension", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Dimension = -1
		assert.Error(t, cfg.Validate())
	})
}
