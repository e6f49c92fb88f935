package hitlist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioCoord(t *testing.T) {
	assert.Equal(t, 1.0, RatioCoord(0, 0))
	assert.Equal(t, 0.0, RatioCoord(0, 4))
	assert.Equal(t, 0.25, RatioCoord(1, 4))
	assert.Equal(t, 1.0, RatioCoord(4, 4))
}

func TestBM25Similarity_Score(t *testing.T) {
	sim := NewBM25Similarity(DefaultBM25Parameters())
	stats := TermStats{DocFreq: 100, DocCount: 1000, AvgFieldLength: 150}

	idf := math.Log(1 + 900.5/100.5)
	tfNorm := 3 * 2.2 / (3 + 1.2*(0.25+0.75*200.0/150.0))

	assert.InDelta(t, idf*tfNorm, sim.Score(stats, 3, 200), 1e-12)
	assert.InDelta(t, 3.38, sim.Score(stats, 3, 200), 0.01)
}

func TestBM25Similarity_Properties(t *testing.T) {
	sim := NewBM25Similarity(DefaultBM25Parameters())
	stats := TermStats{DocFreq: 10, DocCount: 100, AvgFieldLength: 10}

	// More occurrences score higher, longer fields score lower.
	assert.Greater(t, sim.Score(stats, 2, 10), sim.Score(stats, 1, 10))
	assert.Greater(t, sim.Score(stats, 1, 5), sim.Score(stats, 1, 20))

	// Rarer terms score higher.
	rare := stats
	rare.DocFreq = 1
	assert.Greater(t, sim.Score(rare, 1, 10), sim.Score(stats, 1, 10))

	// A term in every document still scores positive.
	common := stats
	common.DocFreq = common.DocCount
	assert.Positive(t, sim.Score(common, 1, 10))

	assert.Zero(t, sim.Score(stats, 0, 10))
	assert.Zero(t, sim.Score(TermStats{AvgFieldLength: 1}, 1, 1))
}

func TestBM25Similarity_ExplainEqualsScore(t *testing.T) {
	sim := NewBM25Similarity(BM25Parameters{K1: 1.5, B: 0.5})
	stats := TermStats{Field: "body", Term: "fox", DocFreq: 4, DocCount: 20, AvgFieldLength: 7.5}

	e := sim.Explain(stats, 2, 9)

	require.True(t, e.Match)
	assert.InDelta(t, sim.Score(stats, 2, 9), e.Value, 1e-12)
	assert.Equal(t, "score(freq=2), product of:", e.Description)
	require.Len(t, e.Details, 2)
	assert.InDelta(t, e.Value, e.Details[0].Value*e.Details[1].Value, 1e-12)
}

func TestNewTermStats(t *testing.T) {
	b := NewSegmentBuilder(nil)
	b.SetLogger(NoopLogger())
	b.AddKeyword(0, "f", "a")
	b.AddKeyword(0, "f", "b")
	b.AddKeyword(1, "f", "a")
	b.AddDocument(2)
	seg := buildForTest(t, b)

	stats := NewTermStats(seg, "f", "a")

	assert.Equal(t, TermStats{Field: "f", Term: "a", DocFreq: 2, DocCount: 2, AvgFieldLength: 1.5}, stats)
	assert.Equal(t, 1.0, NewTermStats(seg, "missing", "a").AvgFieldLength)
}

func TestExplanation_String(t *testing.T) {
	e := NewExplanation(1.5, true, "product of:",
		NewExplanation(3, true, "sum of:",
			NewExplanation(1, true, "f:a"),
			NewExplanation(2, true, "f:b"),
		),
		NewExplanation(0.5, true, "coord(2/4)"),
	)

	want := "1.5 = product of:\n" +
		"  3 = sum of:\n" +
		"    1 = f:a\n" +
		"    2 = f:b\n" +
		"  0.5 = coord(2/4)\n"
	assert.Equal(t, want, e.String())
}
