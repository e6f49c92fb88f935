package hitlist

import (
	"math"
)

// ScoredDoc is a candidate produced by a scorer.
type ScoredDoc struct {
	Doc   int     // segment-local document id
	Score float64 // relevance score, >= 0 for matching documents
}

// RankedDoc is a kept hit together with the values it was sorted by, one per
// comparator, captured when the queue is drained.
type RankedDoc struct {
	ScoredDoc
	Fields []any
}

// ═══════════════════════════════════════════════════════════════════════════════
// TOP-K HIT QUEUE
// ═══════════════════════════════════════════════════════════════════════════════
// The queue keeps the N best documents seen so far. Internally it is a binary
// heap whose root is the WORST kept document, so deciding whether a new
// candidate is competitive is a single comparison against the root:
//
//	capacity 2, relevance order, scores arriving 1, 5, 3, 9, 2
//
//	insert 1 → [1]          insert 3 → 3 beats root 1 → [3 5]
//	insert 5 → [1 5]        insert 9 → 9 beats root 3 → [5 9]
//	                        insert 2 → 2 loses to root 5 → discarded
//
// Ordering is the comparator list in priority order; when every comparator
// ties, the smaller document id wins. That makes the order total, so repeated
// runs (and later merges) never disagree about equal-valued hits.
// ═══════════════════════════════════════════════════════════════════════════════

// HitQueue is a bounded priority queue of scored documents. It is owned by a
// single search and is not safe for concurrent use.
type HitQueue struct {
	comparators []*Comparator
	reverse     []bool
	heap        []ScoredDoc
	capacity    int
	maxScore    float64
	seen        int
}

// NewHitQueue creates a queue holding at most capacity documents, ordered by
// comparators (index 0 has the highest priority).
func NewHitQueue(comparators []*Comparator, capacity int) (*HitQueue, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	reverse := make([]bool, len(comparators))
	for i, c := range comparators {
		reverse[i] = c.SortField().Reverse
	}
	return &HitQueue{
		comparators: comparators,
		reverse:     reverse,
		heap:        make([]ScoredDoc, 0, min(capacity, 1024)),
		capacity:    capacity,
		maxScore:    math.Inf(-1),
	}, nil
}

// LessThan reports whether a sorts after b, i.e. a is the worse hit.
func (q *HitQueue) LessThan(a, b ScoredDoc) bool {
	for i, c := range q.comparators {
		var r int
		if q.reverse[i] {
			r = c.Compare(b, a)
		} else {
			r = c.Compare(a, b)
		}
		if r != 0 {
			return r > 0
		}
	}
	return a.Doc > b.Doc
}

// Insert offers doc to the queue and reports whether it was kept. The
// running max score is updated whether or not doc is kept.
func (q *HitQueue) Insert(doc ScoredDoc) bool {
	q.seen++
	if doc.Score > q.maxScore {
		q.maxScore = doc.Score
	}

	if len(q.heap) < q.capacity {
		q.heap = append(q.heap, doc)
		q.siftUp(len(q.heap) - 1)
		return true
	}

	if q.LessThan(doc, q.heap[0]) {
		return false
	}
	q.heap[0] = doc
	q.siftDown(0)
	return true
}

// Worst returns the current worst kept document.
func (q *HitQueue) Worst() (ScoredDoc, bool) {
	if len(q.heap) == 0 {
		return ScoredDoc{}, false
	}
	return q.heap[0], true
}

// Len is the number of kept documents.
func (q *HitQueue) Len() int { return len(q.heap) }

// Cap is the queue capacity.
func (q *HitQueue) Cap() int { return q.capacity }

// TotalHits is the number of documents ever inserted.
func (q *HitQueue) TotalHits() int { return q.seen }

// MaxScore is the highest score ever inserted, including evicted and
// discarded documents. It is 0 when nothing was inserted.
func (q *HitQueue) MaxScore() float64 {
	if q.seen == 0 {
		return 0
	}
	return q.maxScore
}

// Materialize captures the sort values of doc for every comparator.
func (q *HitQueue) Materialize(doc ScoredDoc) RankedDoc {
	fields := make([]any, len(q.comparators))
	for i, c := range q.comparators {
		fields[i] = c.SortValue(doc)
	}
	return RankedDoc{ScoredDoc: doc, Fields: fields}
}

// Drain empties the queue and returns its documents best first.
func (q *HitQueue) Drain() []RankedDoc {
	out := make([]RankedDoc, len(q.heap))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.Materialize(q.pop())
	}
	return out
}

func (q *HitQueue) pop() ScoredDoc {
	n := len(q.heap)
	root := q.heap[0]
	q.heap[0] = q.heap[n-1]
	q.heap = q.heap[:n-1]
	if len(q.heap) > 0 {
		q.siftDown(0)
	}
	return root
}

// above reports whether heap[i] belongs above heap[j], i.e. is worse.
func (q *HitQueue) above(i, j int) bool {
	return q.LessThan(q.heap[i], q.heap[j])
}

func (q *HitQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.above(i, p) {
			return
		}
		q.heap[i], q.heap[p] = q.heap[p], q.heap[i]
		i = p
	}
}

func (q *HitQueue) siftDown(i int) {
	n := len(q.heap)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		if r := l + 1; r < n && q.above(r, l) {
			worst = r
		}
		if !q.above(worst, i) {
			return
		}
		q.heap[i], q.heap[worst] = q.heap[worst], q.heap[i]
		i = worst
	}
}
