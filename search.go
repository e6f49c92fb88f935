package hitlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SEARCH: Query × Segment → Top-K
// ═══════════════════════════════════════════════════════════════════════════════
// One Search call is one sequential pass:
//
//  1. Resolve the sort fields into comparators (loading the field cache).
//  2. Fold the query tree into a scorer.
//  3. Drain the scorer into a bounded HitQueue.
//  4. Drain the queue best-first into TopDocs.
//
// EXAMPLE:
// --------
//
//	s := hitlist.NewSearcher(seg)
//	q := s.NewBooleanQuery()
//	q.Add(&hitlist.TermQuery{Field: "body", Term: "quick"}, hitlist.Must)
//	top, err := s.Search(ctx, q, 10,
//	    hitlist.SortField{Field: "price", Type: hitlist.SortInt32},
//	    hitlist.IndexOrder())
//
// A Searcher only reads its segment; many goroutines may search through the
// same Searcher at once, each call gets its own scorer and queue.
// ═══════════════════════════════════════════════════════════════════════════════

// TopDocs is the result of searching one segment.
type TopDocs struct {
	Segment SegmentID
	// TotalHits counts every matching document, kept or not.
	TotalHits int
	// MaxScore is the best score among all matching documents, 0 if none.
	MaxScore float64
	// Docs are the kept hits, best first, with their sort values.
	Docs []RankedDoc
}

// Searcher runs queries against one segment.
type Searcher struct {
	seg     Segment
	cfg     Config
	logger  *slog.Logger
	cache   *FieldCache
	coord   CoordFunc
	sim     Similarity
	timeout time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		config: DefaultConfig(),
		logger: slog.Default(),
		coord:  RatioCoord,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = NewFieldCache(o.logger)
	}
	if o.similarity == nil {
		o.similarity = NewBM25Similarity(o.config.BM25)
	}
	if o.config.CancelCheckInterval <= 0 {
		o.config.CancelCheckInterval = DefaultConfig().CancelCheckInterval
	}
	return o
}

// NewSearcher creates a searcher over seg.
func NewSearcher(seg Segment, opts ...Option) *Searcher {
	o := newOptions(opts)
	return &Searcher{
		seg:     seg,
		cfg:     o.config,
		logger:  o.logger,
		cache:   o.cache,
		coord:   o.coord,
		sim:     o.similarity,
		timeout: o.timeout,
	}
}

// Segment returns the searched segment.
func (s *Searcher) Segment() Segment { return s.seg }

// FieldCache returns the cache the searcher loads sort values from.
func (s *Searcher) FieldCache() *FieldCache { return s.cache }

// NewBooleanQuery creates a boolean query limited to Config.MaxClauseCount
// clauses.
func (s *Searcher) NewBooleanQuery() *BooleanQuery {
	return NewBooleanQuery(s.cfg.MaxClauseCount)
}

func (s *Searcher) scoreContext(cancel *cancelCheck) *scoreContext {
	return &scoreContext{
		seg:             s.seg,
		cache:           s.cache,
		sim:             s.sim,
		coord:           s.coord,
		bitsetThreshold: s.cfg.BitsetThreshold,
		logger:          s.logger,
		cancel:          cancel,
	}
}

// cancelCheck polls a context once every interval document advances. A nil
// check never stops. Once tripped it stays tripped, so every scorer sharing
// it unwinds to NoMoreDocs.
type cancelCheck struct {
	ctx      context.Context
	interval int
	n        int
	err      error
}

func newCancelCheck(ctx context.Context, interval int) *cancelCheck {
	if interval < 1 {
		interval = 1
	}
	return &cancelCheck{ctx: ctx, interval: interval}
}

// stop counts one advance and reports whether the search must end.
func (c *cancelCheck) stop() bool {
	if c == nil {
		return false
	}
	if c.err != nil {
		return true
	}
	c.n++
	if c.n%c.interval == 0 {
		c.err = c.ctx.Err()
	}
	return c.err != nil
}

func (s *Searcher) checkOpen() error {
	if c, ok := s.seg.(interface{ Closed() bool }); ok && c.Closed() {
		return fmt.Errorf("%w: %s", ErrSegmentClosed, s.seg.ID())
	}
	return nil
}

// Search returns the n best documents matching q. Without sort fields the
// hits are ordered by relevance. Ties on every sort field go to the smaller
// document id.
//
// The search checks ctx every Config.CancelCheckInterval document advances,
// counting rejected candidates as well as collected hits; once it is done,
// Search returns an error wrapping ErrSearchCanceled and no hits.
func (s *Searcher) Search(ctx context.Context, q Query, n int, sortFields ...SortField) (*TopDocs, error) {
	if n <= 0 {
		return nil, ErrInvalidCapacity
	}
	if q == nil {
		return nil, ErrNilQuery
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, canceledError(err)
	}

	start := time.Now()
	if len(sortFields) == 0 {
		sortFields = []SortField{Relevance()}
	}
	comparators := make([]*Comparator, len(sortFields))
	for i, sf := range sortFields {
		c, err := NewComparator(s.cache, s.seg, sf)
		if err != nil {
			return nil, err
		}
		comparators[i] = c
	}
	queue, err := NewHitQueue(comparators, n)
	if err != nil {
		return nil, err
	}

	check := newCancelCheck(ctx, s.cfg.CancelCheckInterval)
	scorer, err := q.scorer(s.scoreContext(check))
	if err != nil {
		return nil, err
	}

	for doc := scorer.NextDoc(); doc != NoMoreDocs && !check.stop(); doc = scorer.NextDoc() {
		queue.Insert(ScoredDoc{Doc: doc, Score: scorer.Score()})
	}
	if check.err != nil {
		s.logger.Debug("search canceled",
			slog.String("segment", s.seg.ID().String()),
			slog.Int("collected", queue.TotalHits()),
			slog.Int("advances", check.n),
		)
		return nil, canceledError(check.err)
	}

	top := &TopDocs{
		Segment:   s.seg.ID(),
		TotalHits: queue.TotalHits(),
		MaxScore:  queue.MaxScore(),
		Docs:      queue.Drain(),
	}
	s.logger.Debug("search finished",
		slog.String("segment", top.Segment.String()),
		slog.String("query", q.String()),
		slog.Int("hits", top.TotalHits),
		slog.Float64("max_score", top.MaxScore),
		slog.Duration("took", time.Since(start)),
	)
	return top, nil
}

// Explain describes how doc is scored by q, or why it does not match.
func (s *Searcher) Explain(ctx context.Context, q Query, doc int) (*Explanation, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, canceledError(err)
	}
	return q.explain(s.scoreContext(nil), doc)
}

// SearchSegments searches every segment concurrently with one Searcher each
// and returns their results in segment order. No merge is performed. All
// searchers share one FieldCache unless opts provide one.
//
// The first failure cancels the remaining searches and is returned.
func SearchSegments(ctx context.Context, segments []Segment, q Query, n int, sortFields []SortField, opts ...Option) ([]*TopDocs, error) {
	o := newOptions(opts)
	shared := append(append([]Option(nil), opts...), WithFieldCache(o.cache))

	results := make([]*TopDocs, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segments {
		g.Go(func() error {
			top, err := NewSearcher(seg, shared...).Search(gctx, q, n, sortFields...)
			if err != nil {
				return fmt.Errorf("segment %s: %w", seg.ID(), err)
			}
			results[i] = top
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
