package hitlist

import (
	"fmt"
	"math"
)

// CoordFunc returns the factor applied to a boolean match that hit matched of
// possible non-prohibited clauses.
type CoordFunc func(matched, possible int) float64

// RatioCoord is the classic coordination curve: matched / possible.
func RatioCoord(matched, possible int) float64 {
	if possible == 0 {
		return 1
	}
	return float64(matched) / float64(possible)
}

// TermStats are the collection statistics a similarity needs for one term.
type TermStats struct {
	Field          string
	Term           string
	DocFreq        int     // documents containing the term
	DocCount       int     // documents with any term in the field
	AvgFieldLength float64 // mean number of terms per document in the field
}

// NewTermStats gathers the statistics of field:term from seg.
func NewTermStats(seg Segment, field, term string) TermStats {
	fs := seg.FieldStats(field)
	avg := 1.0
	if fs.DocCount > 0 {
		avg = float64(fs.SumTermFreq) / float64(fs.DocCount)
	}
	return TermStats{
		Field:          field,
		Term:           term,
		DocFreq:        seg.DocFreq(field, term),
		DocCount:       fs.DocCount,
		AvgFieldLength: avg,
	}
}

// Similarity scores one term occurrence in one document.
type Similarity interface {
	// Score returns the unboosted score of a document in which the term
	// occurs freq times in a field of fieldLength terms. It must be >= 0.
	Score(stats TermStats, freq, fieldLength int) float64
	// Explain breaks Score down. Its value must equal Score.
	Explain(stats TermStats, freq, fieldLength int) *Explanation
}

// ═══════════════════════════════════════════════════════════════════════════════
// BM25 SIMILARITY
// ═══════════════════════════════════════════════════════════════════════════════
// score = IDF × (tf × (k1 + 1)) / (tf + k1 × (1 - b + b × dl / avgdl))
//
//	IDF = log(1 + (N - df + 0.5) / (df + 0.5))
//
// where N is the number of documents with the field, df the number containing
// the term, tf the term frequency and dl the field length of the document.
//
// EXAMPLE:
// --------
// N = 1000, df = 100, tf = 3, dl = 200, avgdl = 150, k1 = 1.2, b = 0.75
//
//	IDF    = log(1 + 900.5 / 100.5)         ≈ 2.30
//	tfNorm = (3 × 2.2) / (3 + 1.2 × 1.25)   ≈ 1.47
//	score  ≈ 3.38
//
// The "+1" inside the log keeps IDF positive even for terms present in every
// document.
// ═══════════════════════════════════════════════════════════════════════════════

// BM25Similarity is the default Similarity.
type BM25Similarity struct {
	Params BM25Parameters
}

// NewBM25Similarity creates a BM25 similarity with the given parameters.
func NewBM25Similarity(params BM25Parameters) *BM25Similarity {
	return &BM25Similarity{Params: params}
}

func (s *BM25Similarity) idf(stats TermStats) float64 {
	df := float64(stats.DocFreq)
	n := float64(stats.DocCount)
	if df == 0 {
		return 0
	}
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func (s *BM25Similarity) tfNorm(stats TermStats, freq, fieldLength int) float64 {
	tf := float64(freq)
	if tf == 0 {
		return 0
	}
	k1, b := s.Params.K1, s.Params.B
	norm := 1 - b + b*float64(fieldLength)/stats.AvgFieldLength
	return tf * (k1 + 1) / (tf + k1*norm)
}

func (s *BM25Similarity) Score(stats TermStats, freq, fieldLength int) float64 {
	return s.idf(stats) * s.tfNorm(stats, freq, fieldLength)
}

func (s *BM25Similarity) Explain(stats TermStats, freq, fieldLength int) *Explanation {
	idf := s.idf(stats)
	tfNorm := s.tfNorm(stats, freq, fieldLength)

	idfExpl := NewExplanation(idf, true,
		"idf, computed as log(1 + (docCount - docFreq + 0.5) / (docFreq + 0.5)) from:",
		NewExplanation(float64(stats.DocFreq), true, "docFreq"),
		NewExplanation(float64(stats.DocCount), true, "docCount"),
	)
	tfExpl := NewExplanation(tfNorm, true,
		"tfNorm, computed as (freq * (k1 + 1)) / (freq + k1 * (1 - b + b * fieldLength / avgFieldLength)) from:",
		NewExplanation(float64(freq), true, "termFreq"),
		NewExplanation(s.Params.K1, true, "parameter k1"),
		NewExplanation(s.Params.B, true, "parameter b"),
		NewExplanation(stats.AvgFieldLength, true, "avgFieldLength"),
		NewExplanation(float64(fieldLength), true, "fieldLength"),
	)
	return NewExplanation(idf*tfNorm, true,
		fmt.Sprintf("score(freq=%d), product of:", freq),
		idfExpl, tfExpl,
	)
}
