package hitlist

import (
	"io"
	"log/slog"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════
// Config gathers the knobs a Searcher needs. Start from DefaultConfig and
// override what you need:
//
//	cfg := hitlist.DefaultConfig()
//	cfg.MaxClauseCount = 4096
//	s := hitlist.NewSearcher(seg, hitlist.WithConfig(cfg))
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultMaxClauseCount is the clause limit applied to new boolean queries.
const DefaultMaxClauseCount = 1024

// BM25Parameters holds the tuning parameters for the BM25 similarity
type BM25Parameters struct {
	K1 float64 // Term frequency saturation (typical: 1.2-2.0)
	B  float64 // Length normalization (typical: 0.75)
}

// DefaultBM25Parameters returns the standard BM25 parameters
func DefaultBM25Parameters() BM25Parameters {
	return BM25Parameters{
		K1: 1.2,
		B:  0.75,
	}
}

// Config holds searcher-wide settings.
type Config struct {
	// MaxClauseCount bounds the clauses of boolean queries built through
	// Searcher.NewBooleanQuery.
	MaxClauseCount int

	// BM25 configures the default similarity.
	BM25 BM25Parameters

	// BitsetThreshold is the SHOULD-clause fan-out at which a pure disjunction
	// switches to the windowed bitset strategy. Zero disables the switch.
	BitsetThreshold int

	// CancelCheckInterval is the number of collected documents between two
	// cooperative cancellation checks.
	CancelCheckInterval int
}

// DefaultConfig returns the standard searcher configuration
func DefaultConfig() Config {
	return Config{
		MaxClauseCount:      DefaultMaxClauseCount,
		BM25:                DefaultBM25Parameters(),
		BitsetThreshold:     32,
		CancelCheckInterval: 256,
	}
}

type options struct {
	config     Config
	logger     *slog.Logger
	cache      *FieldCache
	coord      CoordFunc
	similarity Similarity
	timeout    time.Duration
}

// Option configures a Searcher.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithLogger sets the structured logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFieldCache shares a FieldCache between searchers. Searchers over the
// same segments should share one cache so derived values are built once.
func WithFieldCache(c *FieldCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithCoord injects the coordination curve used by boolean queries.
func WithCoord(fn CoordFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.coord = fn
		}
	}
}

// WithSimilarity injects the term scoring model.
func WithSimilarity(sim Similarity) Option {
	return func(o *options) {
		if sim != nil {
			o.similarity = sim
		}
	}
}

// WithTimeout bounds every Search call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// NoopLogger returns a logger that discards all output.
func NoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
