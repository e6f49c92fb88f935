package hitlist

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceScorer iterates a sorted doc list; every doc scores weight.
type sliceScorer struct {
	docs   []int
	weight float64
	i      int
	doc    int
}

func newSliceScorer(weight float64, docs ...int) *sliceScorer {
	return &sliceScorer{docs: docs, weight: weight, i: -1, doc: -1}
}

func (s *sliceScorer) DocID() int     { return s.doc }
func (s *sliceScorer) Score() float64 { return s.weight }
func (s *sliceScorer) Cost() int64    { return int64(len(s.docs)) }

func (s *sliceScorer) NextDoc() int {
	s.i++
	if s.i >= len(s.docs) {
		s.doc = NoMoreDocs
	} else {
		s.doc = s.docs[s.i]
	}
	return s.doc
}

func (s *sliceScorer) Advance(target int) int {
	for s.doc < target && s.doc != NoMoreDocs {
		s.NextDoc()
	}
	return s.doc
}

func drainScorer(s Scorer) ([]int, []float64) {
	var docs []int
	var scores []float64
	for doc := s.NextDoc(); doc != NoMoreDocs; doc = s.NextDoc() {
		docs = append(docs, doc)
		scores = append(scores, s.Score())
	}
	return docs, scores
}

func randomDocs(rng *rand.Rand, maxDoc int, density float64) []int {
	var docs []int
	for doc := 0; doc < maxDoc; doc++ {
		if rng.Float64() < density {
			docs = append(docs, doc)
		}
	}
	return docs
}

func TestConjunctionScorer(t *testing.T) {
	s := newConjunctionScorer([]Scorer{
		newSliceScorer(1, 1, 3, 4, 9, 20),
		newSliceScorer(2, 3, 9, 12),
		newSliceScorer(4, 0, 3, 5, 9, 12, 20),
	}, 0.5)

	docs, scores := drainScorer(s)

	assert.Equal(t, []int{3, 9}, docs)
	assert.Equal(t, []float64{3.5, 3.5}, scores)
	assert.Equal(t, NoMoreDocs, s.DocID())
}

func TestConjunctionScorer_Advance(t *testing.T) {
	s := newConjunctionScorer([]Scorer{
		newSliceScorer(1, 1, 3, 9, 20, 30),
		newSliceScorer(1, 3, 9, 20, 30),
	}, 1)

	assert.Equal(t, 9, s.Advance(4))
	assert.Equal(t, 20, s.NextDoc())
	assert.Equal(t, NoMoreDocs, s.Advance(31))
}

func TestConjunctionScorer_LeadIsCheapest(t *testing.T) {
	cheap := newSliceScorer(1, 5)
	s := newConjunctionScorer([]Scorer{newSliceScorer(1, 1, 2, 3, 4, 5), cheap}, 1)

	assert.Same(t, cheap, s.subs[0])
	assert.Equal(t, int64(1), s.Cost())
}

func TestDisjunctionScorer(t *testing.T) {
	d := newDisjunctionScorer([]Scorer{
		newSliceScorer(1, 1, 4),
		newSliceScorer(2, 4, 6),
	})

	assert.Equal(t, 1, d.NextDoc())
	assert.Equal(t, 1, d.matched())
	assert.Equal(t, 1.0, d.Score())

	assert.Equal(t, 4, d.NextDoc())
	assert.Equal(t, 2, d.matched())
	assert.Equal(t, 3.0, d.Score())

	assert.Equal(t, 6, d.NextDoc())
	assert.Equal(t, NoMoreDocs, d.NextDoc())
	assert.Equal(t, 0, d.matched())
}

func TestBitsetDisjunction_MatchesLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	const maxDoc = 3 * windowSize
	lists := make([][]int, 40)
	for i := range lists {
		lists[i] = randomDocs(rng, maxDoc, 0.01)
	}
	build := func() []Scorer {
		subs := make([]Scorer, len(lists))
		for i, docs := range lists {
			subs[i] = newSliceScorer(float64(i+1), docs...)
		}
		return subs
	}

	linear := newDisjunctionScorer(build())
	bitset := newBitsetDisjunction(build())
	for {
		want := linear.NextDoc()
		got := bitset.NextDoc()
		require.Equal(t, want, got)
		if want == NoMoreDocs {
			break
		}
		require.Equal(t, linear.matched(), bitset.matched(), "doc %d", want)
		require.InDelta(t, linear.Score(), bitset.Score(), 1e-9, "doc %d", want)
	}
}

func TestBitsetDisjunction_Advance(t *testing.T) {
	b := newBitsetDisjunction([]Scorer{
		newSliceScorer(1, 2, 10, windowSize+5, 3*windowSize),
		newSliceScorer(1, 10, windowSize+6),
	})

	assert.Equal(t, 10, b.Advance(3))
	assert.Equal(t, 2, b.matched())
	assert.Equal(t, windowSize+6, b.Advance(windowSize+6))
	assert.Equal(t, 3*windowSize, b.Advance(windowSize+7))
	assert.Equal(t, NoMoreDocs, b.NextDoc())
}

func TestBooleanScorer_NextMatch_States(t *testing.T) {
	s := newBooleanScorer(
		[]Scorer{newSliceScorer(1, 1, 2)},
		[]Scorer{newSliceScorer(1, 1, 3)},
		nil, 0, []float64{0, 0.5, 1}, 0,
	)

	assert.Equal(t, stateAdvancing, s.state)

	got, ok := s.NextMatch()
	require.True(t, ok)
	assert.Equal(t, ScoredDoc{Doc: 1, Score: 2}, got)
	assert.Equal(t, stateEmit, s.state)

	got, ok = s.NextMatch()
	require.True(t, ok)
	assert.Equal(t, ScoredDoc{Doc: 2, Score: 0.5}, got)

	_, ok = s.NextMatch()
	assert.False(t, ok)
	assert.Equal(t, stateExhausted, s.state)
	assert.Equal(t, "EXHAUSTED", s.state.String())

	_, ok = s.NextMatch()
	assert.False(t, ok)
}

func TestBooleanScorer_Prohibited(t *testing.T) {
	s := newBooleanScorer(
		nil,
		[]Scorer{newSliceScorer(1, 1, 2, 3, 4)},
		[]Scorer{newSliceScorer(1, 2, 4)},
		0, []float64{0, 1}, 0,
	)

	docs, _ := drainScorer(s)
	assert.Equal(t, []int{1, 3}, docs)
}

func TestBooleanScorer_MinimumShouldMatch(t *testing.T) {
	optional := func() []Scorer {
		return []Scorer{
			newSliceScorer(1, 1, 2, 3),
			newSliceScorer(1, 2, 3),
			newSliceScorer(1, 3, 4),
		}
	}
	coords := []float64{1, 1, 1, 1}

	s := newBooleanScorer(nil, optional(), nil, 2, coords, 0)
	docs, scores := drainScorer(s)
	assert.Equal(t, []int{2, 3}, docs)
	assert.Equal(t, []float64{2, 3}, scores)

	// Without MUST clauses at least one SHOULD clause is needed.
	s = newBooleanScorer(nil, optional(), nil, 0, coords, 0)
	docs, _ = drainScorer(s)
	assert.Equal(t, []int{1, 2, 3, 4}, docs)
}

func TestBooleanScorer_RequiredWithMinimumShouldMatch(t *testing.T) {
	s := newBooleanScorer(
		[]Scorer{newSliceScorer(1, 1, 2, 3)},
		[]Scorer{newSliceScorer(1, 2), newSliceScorer(1, 2, 3)},
		nil, 2, []float64{1, 1, 1, 1}, 0,
	)

	docs, _ := drainScorer(s)
	assert.Equal(t, []int{2}, docs)
}

func TestBooleanScorer_OnlyProhibited(t *testing.T) {
	s := newBooleanScorer(nil, nil, []Scorer{newSliceScorer(1, 1)}, 0, []float64{1}, 0)

	_, ok := s.NextMatch()
	assert.False(t, ok)
	assert.Equal(t, NoMoreDocs, s.DocID())
}

func TestBooleanScorer_Advance(t *testing.T) {
	s := newBooleanScorer(
		[]Scorer{newSliceScorer(1, 1, 5, 9, 12), newSliceScorer(1, 5, 9, 12)},
		nil,
		[]Scorer{newSliceScorer(1, 9)},
		0, []float64{1, 1, 1}, 0,
	)

	assert.Equal(t, 12, s.Advance(6))
	assert.Equal(t, NoMoreDocs, s.NextDoc())
}

func TestBooleanScorer_BitsetPathMatchesLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const maxDoc = 5000
	lists := make([][]int, 36)
	for i := range lists {
		lists[i] = randomDocs(rng, maxDoc, 0.02)
	}
	prohibitedDocs := randomDocs(rng, maxDoc, 0.1)
	coords := make([]float64, len(lists)+1)
	for i := range coords {
		coords[i] = RatioCoord(i, len(lists))
	}
	run := func(threshold int) ([]int, []float64) {
		subs := make([]Scorer, len(lists))
		for i, docs := range lists {
			subs[i] = newSliceScorer(float64(i%5+1), docs...)
		}
		s := newBooleanScorer(nil, subs, []Scorer{newSliceScorer(1, prohibitedDocs...)}, 2, coords, threshold)
		return drainScorer(s)
	}

	linearDocs, linearScores := run(0)
	bitsetDocs, bitsetScores := run(32)

	require.NotEmpty(t, linearDocs)
	assert.Equal(t, linearDocs, bitsetDocs)
	require.Len(t, bitsetScores, len(linearScores))
	for i := range linearScores {
		assert.InDelta(t, linearScores[i], bitsetScores[i], 1e-9)
	}
	assert.True(t, sort.IntsAreSorted(bitsetDocs))
}

func TestRangeScorer(t *testing.T) {
	s := newRangeScorer(6, 2, func(doc int) bool { return doc%2 == 1 })

	docs, scores := drainScorer(s)
	assert.Equal(t, []int{1, 3, 5}, docs)
	assert.Equal(t, []float64{2, 2, 2}, scores)
}

func TestEmptyScorer_DocID(t *testing.T) {
	s := newEmptyScorer()
	assert.Equal(t, -1, s.DocID())
	assert.Equal(t, NoMoreDocs, s.NextDoc())
	assert.Equal(t, NoMoreDocs, s.DocID())

	s = newEmptyScorer()
	assert.Equal(t, NoMoreDocs, s.Advance(3))
	assert.Equal(t, NoMoreDocs, s.DocID())
	assert.Zero(t, s.Cost())
}

func TestBooleanQuery_EmptyScorerBeforeIteration(t *testing.T) {
	seg := keywordSegment(t, "f", []string{"a"})
	sc := &scoreContext{seg: seg, cache: NewFieldCache(NoopLogger()), sim: NewBM25Similarity(DefaultBM25Parameters()), logger: NoopLogger()}

	unsatisfiable := boolQuery(t, must(term("f", "a")))
	unsatisfiable.MinimumShouldMatch = 1

	for _, q := range []Query{term("f", "missing"), NewBooleanQuery(0), unsatisfiable} {
		s, err := q.scorer(sc)
		require.NoError(t, err)
		assert.Equal(t, -1, s.DocID(), "query %s", q)
		assert.Equal(t, NoMoreDocs, s.NextDoc(), "query %s", q)
	}
}

func TestRangeScorer_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	check := newCancelCheck(ctx, 4)
	s := newRangeScorer(100, 1, func(doc int) bool { return doc == 50 })
	s.cancel = check

	cancel()

	assert.Equal(t, NoMoreDocs, s.NextDoc())
	assert.ErrorIs(t, check.err, context.Canceled)
	assert.Equal(t, 4, check.n)
	// Tripped checks stay tripped.
	assert.True(t, check.stop())
}

func TestCancelCheck_Nil(t *testing.T) {
	var check *cancelCheck
	for i := 0; i < 10; i++ {
		assert.False(t, check.stop())
	}
}
