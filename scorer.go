package hitlist

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Scorer iterates the matching documents of one query over one segment in
// ascending document order and scores the current one.
//
// DocID is -1 before the first NextDoc/Advance and NoMoreDocs once
// exhausted. Advance targets must be greater than the current document.
type Scorer interface {
	DocID() int
	NextDoc() int
	Advance(target int) int
	Score() float64
	Cost() int64
}

// ═══════════════════════════════════════════════════════════════════════════════
// LEAF SCORERS
// ═══════════════════════════════════════════════════════════════════════════════

// emptyScorer matches nothing. It still reports -1 until it is first
// advanced.
type emptyScorer struct {
	doc int
}

func newEmptyScorer() *emptyScorer { return &emptyScorer{doc: -1} }

func (s *emptyScorer) DocID() int     { return s.doc }
func (s *emptyScorer) Score() float64 { return 0 }
func (s *emptyScorer) Cost() int64    { return 0 }

func (s *emptyScorer) NextDoc() int {
	s.doc = NoMoreDocs
	return s.doc
}

func (s *emptyScorer) Advance(_ int) int {
	s.doc = NoMoreDocs
	return s.doc
}

// termScorer scores the postings of one term with a Similarity.
type termScorer struct {
	postings PostingsIterator
	seg      Segment
	sim      Similarity
	stats    TermStats
	boost    float64
}

func (s *termScorer) DocID() int             { return s.postings.DocID() }
func (s *termScorer) NextDoc() int           { return s.postings.NextDoc() }
func (s *termScorer) Advance(target int) int { return s.postings.Advance(target) }
func (s *termScorer) Cost() int64            { return s.postings.Cost() }

func (s *termScorer) Score() float64 {
	doc := s.postings.DocID()
	length := s.seg.FieldLength(s.stats.Field, doc)
	return s.boost * s.sim.Score(s.stats, s.postings.Freq(), length)
}

// rangeScorer walks 0..maxDoc-1 and keeps the documents accept approves,
// each with the same constant score.
type rangeScorer struct {
	maxDoc int
	doc    int
	accept func(doc int) bool
	score  float64
	cancel *cancelCheck
}

func newRangeScorer(maxDoc int, score float64, accept func(int) bool) *rangeScorer {
	return &rangeScorer{maxDoc: maxDoc, doc: -1, accept: accept, score: score}
}

func (s *rangeScorer) DocID() int     { return s.doc }
func (s *rangeScorer) Score() float64 { return s.score }
func (s *rangeScorer) Cost() int64    { return int64(s.maxDoc) }
func (s *rangeScorer) NextDoc() int   { return s.Advance(s.doc + 1) }

func (s *rangeScorer) Advance(target int) int {
	for doc := target; doc < s.maxDoc; doc++ {
		if s.cancel.stop() {
			break
		}
		if s.accept == nil || s.accept(doc) {
			s.doc = doc
			return doc
		}
	}
	s.doc = NoMoreDocs
	return s.doc
}

// bitmapScorer iterates a roaring bitmap of candidates, keeping those accept
// approves, with a constant score.
type bitmapScorer struct {
	bits   *roaring.Bitmap
	it     roaring.IntPeekable
	doc    int
	accept func(doc int) bool
	score  float64
	cancel *cancelCheck
}

func newBitmapScorer(bits *roaring.Bitmap, score float64, accept func(int) bool) *bitmapScorer {
	return &bitmapScorer{bits: bits, it: bits.Iterator(), doc: -1, accept: accept, score: score}
}

func (s *bitmapScorer) DocID() int     { return s.doc }
func (s *bitmapScorer) Score() float64 { return s.score }
func (s *bitmapScorer) Cost() int64    { return int64(s.bits.GetCardinality()) }
func (s *bitmapScorer) NextDoc() int   { return s.Advance(s.doc + 1) }

func (s *bitmapScorer) Advance(target int) int {
	if target >= NoMoreDocs || target < 0 {
		s.doc = NoMoreDocs
		return s.doc
	}
	s.it.AdvanceIfNeeded(uint32(target))
	for s.it.HasNext() && !s.cancel.stop() {
		doc := int(s.it.Next())
		if s.accept == nil || s.accept(doc) {
			s.doc = doc
			return doc
		}
	}
	s.doc = NoMoreDocs
	return s.doc
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONJUNCTION: Leapfrog over Required Clauses
// ═══════════════════════════════════════════════════════════════════════════════
// The cheapest sub-scorer leads; every other one is advanced to the lead's
// document. When one lands past it, the lead jumps forward to that document
// and alignment starts over:
//
//	lead  "fox"   → [3, 9, 12]
//	other "quick" → [1, 4, 9, 20]
//
//	lead 3 → quick.Advance(3) = 4 → lead.Advance(4) = 9
//	         quick.Advance(9) = 9 → match 9
//
// Only documents every clause contains are visited, and the rare clause
// decides how far the common ones skip.
// ═══════════════════════════════════════════════════════════════════════════════

type conjunctionScorer struct {
	subs   []Scorer // ascending cost, subs[0] leads
	doc    int
	factor float64 // coord × boost, applied to the summed score
	cancel *cancelCheck
}

func newConjunctionScorer(subs []Scorer, factor float64) *conjunctionScorer {
	sorted := make([]Scorer, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cost() < sorted[j].Cost()
	})
	return &conjunctionScorer{subs: sorted, doc: -1, factor: factor}
}

func (c *conjunctionScorer) DocID() int  { return c.doc }
func (c *conjunctionScorer) Cost() int64 { return c.subs[0].Cost() }

func (c *conjunctionScorer) NextDoc() int {
	return c.align(c.subs[0].NextDoc())
}

func (c *conjunctionScorer) Advance(target int) int {
	return c.align(c.subs[0].Advance(target))
}

func (c *conjunctionScorer) align(target int) int {
	lead := c.subs[0]
outer:
	for target != NoMoreDocs && !c.cancel.stop() {
		for _, sub := range c.subs[1:] {
			doc := sub.DocID()
			if doc < target {
				doc = sub.Advance(target)
			}
			if doc > target {
				target = lead.Advance(doc)
				continue outer
			}
		}
		c.doc = target
		return target
	}
	c.doc = NoMoreDocs
	return c.doc
}

func (c *conjunctionScorer) Score() float64 {
	var sum float64
	for _, sub := range c.subs {
		sum += sub.Score()
	}
	return sum * c.factor
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISJUNCTIONS: the SHOULD Block
// ═══════════════════════════════════════════════════════════════════════════════
// A disjunction positions on the smallest document any of its sub-scorers is
// on and remembers how many of them are there and their summed score. Two
// strategies share that contract:
//
//   - disjunctionScorer compares the current documents of every sub-scorer.
//     Good for the usual handful of optional clauses.
//   - bitsetDisjunction scores a window of documents at a time: each
//     sub-scorer dumps its hits in the window into per-slot accumulators and a
//     roaring bitmap, which is then replayed in document order. Used when the
//     SHOULD fan-out reaches Config.BitsetThreshold and no clause is required.
//
// Both yield ascending document ids, so the boolean scorer above them does
// not care which one it got.
// ═══════════════════════════════════════════════════════════════════════════════

type shouldScorer interface {
	Scorer
	// matched is the number of sub-scorers on the current document.
	matched() int
}

type disjunctionScorer struct {
	subs  []Scorer
	doc   int
	count int
	sum   float64
	cost  int64
}

func newDisjunctionScorer(subs []Scorer) *disjunctionScorer {
	d := &disjunctionScorer{subs: subs, doc: -1}
	for _, s := range subs {
		d.cost += s.Cost()
	}
	return d
}

func (d *disjunctionScorer) DocID() int     { return d.doc }
func (d *disjunctionScorer) Score() float64 { return d.sum }
func (d *disjunctionScorer) Cost() int64    { return d.cost }
func (d *disjunctionScorer) matched() int   { return d.count }
func (d *disjunctionScorer) NextDoc() int   { return d.Advance(d.doc + 1) }

func (d *disjunctionScorer) Advance(target int) int {
	doc := NoMoreDocs
	for _, s := range d.subs {
		cur := s.DocID()
		if cur < target {
			cur = s.Advance(target)
		}
		if cur < doc {
			doc = cur
		}
	}

	d.doc, d.count, d.sum = doc, 0, 0
	if doc == NoMoreDocs {
		return doc
	}
	for _, s := range d.subs {
		if s.DocID() == doc {
			d.count++
			d.sum += s.Score()
		}
	}
	return doc
}

// windowSize is the number of documents a bitsetDisjunction scores at once.
const windowSize = 2048

type bitsetDisjunction struct {
	subs   []Scorer
	cost   int64
	base   int
	hits   *roaring.Bitmap // window-relative documents with at least one hit
	it     roaring.IntPeekable
	counts [windowSize]int32
	sums   [windowSize]float64

	doc   int
	count int
	sum   float64
}

func newBitsetDisjunction(subs []Scorer) *bitsetDisjunction {
	d := &bitsetDisjunction{subs: subs, hits: roaring.NewBitmap(), doc: -1}
	for _, s := range subs {
		d.cost += s.Cost()
	}
	return d
}

func (d *bitsetDisjunction) DocID() int     { return d.doc }
func (d *bitsetDisjunction) Score() float64 { return d.sum }
func (d *bitsetDisjunction) Cost() int64    { return d.cost }
func (d *bitsetDisjunction) matched() int   { return d.count }
func (d *bitsetDisjunction) NextDoc() int   { return d.Advance(d.doc + 1) }

func (d *bitsetDisjunction) Advance(target int) int {
	for {
		if d.it != nil && target < d.base+windowSize {
			if target > d.base {
				d.it.AdvanceIfNeeded(uint32(target - d.base))
			}
			if d.it.HasNext() {
				slot := int(d.it.Next())
				d.doc = d.base + slot
				d.count = int(d.counts[slot])
				d.sum = d.sums[slot]
				return d.doc
			}
			target = d.base + windowSize
		}
		if !d.fill(target) {
			d.doc, d.count, d.sum = NoMoreDocs, 0, 0
			return d.doc
		}
	}
}

// fill scores the window starting at the first hit >= target.
func (d *bitsetDisjunction) fill(target int) bool {
	base := NoMoreDocs
	for _, s := range d.subs {
		doc := s.DocID()
		if doc < target {
			doc = s.Advance(target)
		}
		if doc < base {
			base = doc
		}
	}
	if base == NoMoreDocs {
		return false
	}

	it := d.hits.Iterator()
	for it.HasNext() {
		slot := it.Next()
		d.counts[slot] = 0
		d.sums[slot] = 0
	}
	d.hits.Clear()

	d.base = base
	end := base + windowSize
	for _, s := range d.subs {
		for doc := s.DocID(); doc < end; doc = s.NextDoc() {
			slot := doc - base
			d.counts[slot]++
			d.sums[slot] += s.Score()
			d.hits.Add(uint32(slot))
		}
	}
	d.it = d.hits.Iterator()
	return true
}

// ═══════════════════════════════════════════════════════════════════════════════
// BOOLEAN SCORER
// ═══════════════════════════════════════════════════════════════════════════════
// The general path for any mix of MUST, SHOULD and MUST_NOT clauses.
// Candidates come from the required conjunction when there is one, otherwise
// from the SHOULD disjunction. A candidate matches when:
//
//	(a) every MUST clause is on it      (guaranteed by the candidate source)
//	(b) no MUST_NOT clause is on it     (each prohibited scorer is advanced)
//	(c) #SHOULD on it >= minShould      (minShould is at least 1 without MUST)
//
// score = (Σ scores of the present MUST and SHOULD clauses)
//
//	× coord(#present, #non-prohibited clauses) × boost
//
// The scorer is a small state machine:
//
//	ADVANCING ──match──▶ EMIT ──NextMatch──▶ ADVANCING
//	    │
//	    └──source exhausted──▶ EXHAUSTED
// ═══════════════════════════════════════════════════════════════════════════════

type scorerState int

const (
	stateAdvancing scorerState = iota
	stateEmit
	stateExhausted
)

func (s scorerState) String() string {
	switch s {
	case stateAdvancing:
		return "ADVANCING"
	case stateEmit:
		return "EMIT"
	default:
		return "EXHAUSTED"
	}
}

type booleanScorer struct {
	required   Scorer       // nil without MUST clauses
	should     shouldScorer // nil without SHOULD clauses
	prohibited []Scorer

	numRequired int
	minShould   int
	// coords[m] is the factor for m matching non-prohibited clauses, with the
	// boost already folded in.
	coords []float64

	state  scorerState
	doc    int
	score  float64
	cancel *cancelCheck
}

func newBooleanScorer(required, optional, prohibited []Scorer, minShould int, coords []float64, bitsetThreshold int) *booleanScorer {
	s := &booleanScorer{
		prohibited:  prohibited,
		numRequired: len(required),
		minShould:   minShould,
		coords:      coords,
		doc:         -1,
	}

	switch len(required) {
	case 0:
		if s.minShould < 1 {
			s.minShould = 1
		}
	case 1:
		s.required = required[0]
	default:
		s.required = newConjunctionScorer(required, 1)
	}

	if len(optional) > 0 {
		if len(required) == 0 && bitsetThreshold > 0 && len(optional) >= bitsetThreshold {
			s.should = newBitsetDisjunction(optional)
		} else {
			s.should = newDisjunctionScorer(optional)
		}
	}

	if s.required == nil && s.should == nil {
		s.state = stateExhausted
		s.doc = NoMoreDocs
	}
	return s
}

// setCancel makes the scorer, and the conjunction it leads with, stop once
// c trips.
func (s *booleanScorer) setCancel(c *cancelCheck) {
	s.cancel = c
	if conj, ok := s.required.(*conjunctionScorer); ok {
		conj.cancel = c
	}
}

func (s *booleanScorer) DocID() int     { return s.doc }
func (s *booleanScorer) Score() float64 { return s.score }

func (s *booleanScorer) Cost() int64 {
	switch {
	case s.required != nil:
		return s.required.Cost()
	case s.should != nil:
		return s.should.Cost()
	}
	return 0
}

// NextMatch advances to the next matching document and returns it, or false
// once the scorer is exhausted.
func (s *booleanScorer) NextMatch() (ScoredDoc, bool) {
	if s.advanceTo(s.doc+1) == NoMoreDocs {
		return ScoredDoc{}, false
	}
	return ScoredDoc{Doc: s.doc, Score: s.score}, true
}

func (s *booleanScorer) NextDoc() int { return s.advanceTo(s.doc + 1) }

func (s *booleanScorer) Advance(target int) int { return s.advanceTo(target) }

func (s *booleanScorer) advanceTo(target int) int {
	if s.state == stateExhausted {
		return NoMoreDocs
	}
	s.state = stateAdvancing

	for s.state == stateAdvancing {
		src := Scorer(s.should)
		if s.required != nil {
			src = s.required
		}
		doc := src.DocID()
		if doc < target {
			doc = src.Advance(target)
		}

		switch {
		case doc == NoMoreDocs || s.cancel.stop():
			s.state = stateExhausted
			s.doc, s.score = NoMoreDocs, 0
		case s.accept(doc):
			s.state = stateEmit
			s.doc = doc
		default:
			target = doc + 1
		}
	}
	return s.doc
}

// accept checks the prohibited and SHOULD predicates for a candidate the
// source produced and computes its score.
func (s *booleanScorer) accept(doc int) bool {
	for _, p := range s.prohibited {
		cur := p.DocID()
		if cur < doc {
			cur = p.Advance(doc)
		}
		if cur == doc {
			return false
		}
	}

	var sum float64
	matched := s.numRequired
	if s.required != nil {
		sum = s.required.Score()
	}

	shouldMatched := 0
	if s.should != nil {
		cur := s.should.DocID()
		if cur < doc {
			cur = s.should.Advance(doc)
		}
		if cur == doc {
			shouldMatched = s.should.matched()
			sum += s.should.Score()
		}
	}
	if shouldMatched < s.minShould {
		return false
	}

	s.score = sum * s.coords[matched+shouldMatched]
	return true
}
