package hitlist

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultMaxClauseCount, cfg.MaxClauseCount)
	assert.Equal(t, 1.2, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, 32, cfg.BitsetThreshold)
	assert.Equal(t, 256, cfg.CancelCheckInterval)
}

func TestNewOptions_Defaults(t *testing.T) {
	o := newOptions(nil)

	assert.Equal(t, DefaultConfig(), o.config)
	assert.Same(t, slog.Default(), o.logger)
	assert.NotNil(t, o.cache)
	assert.IsType(t, &BM25Similarity{}, o.similarity)
	assert.Equal(t, 0.5, o.coord(1, 2))
	assert.Zero(t, o.timeout)
}

func TestNewOptions_Overrides(t *testing.T) {
	cache := NewFieldCache(NoopLogger())
	logger := NoopLogger()
	sim := NewBM25Similarity(BM25Parameters{K1: 2, B: 0})
	cfg := Config{MaxClauseCount: 8}

	o := newOptions([]Option{
		WithConfig(cfg),
		WithLogger(logger),
		WithLogger(nil),
		WithFieldCache(cache),
		WithSimilarity(sim),
		WithCoord(func(int, int) float64 { return 1 }),
		WithCoord(nil),
		WithTimeout(time.Second),
	})

	assert.Equal(t, 8, o.config.MaxClauseCount)
	// A zero interval falls back to the default.
	assert.Equal(t, 256, o.config.CancelCheckInterval)
	assert.Same(t, logger, o.logger)
	assert.Same(t, cache, o.cache)
	assert.Same(t, sim, o.similarity)
	assert.Equal(t, 1.0, o.coord(1, 2))
	assert.Equal(t, time.Second, o.timeout)
}

func TestLoggerOrDefault(t *testing.T) {
	assert.Same(t, slog.Default(), loggerOrDefault(nil))
	l := NoopLogger()
	assert.Same(t, l, loggerOrDefault(l))
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
