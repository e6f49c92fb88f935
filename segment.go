// Package hitlist implements the ranked-retrieval core of a full-text search
// engine: boolean query scoring, multi-field sorting backed by a per-segment
// field cache, and a bounded top-K hit queue.
//
// ═══════════════════════════════════════════════════════════════════════════════
// WHAT IS A SEGMENT?
// ═══════════════════════════════════════════════════════════════════════════════
// A segment is one immutable slice of an index. Inside a segment every
// document has a small dense id (0..MaxDoc-1), and every field maps terms to
// posting lists of those ids:
//
//	field "body"
//	  "brown" → [1, 3]
//	  "fox"   → [1]
//	  "quick" → [1, 3, 5]
//	field "price"
//	  "10"    → [0]
//	  "5"     → [1, 2]
//
// Scoring never looks past one segment. The core only needs two things from
// whatever index format produced the segment:
//   - a sorted term enumerator per field (used by the field cache)
//   - posting iteration per term with skip-ahead (used by the scorers)
//
// MemorySegment is the in-process implementation used by tests and small
// indexes; it stores postings in roaring bitmaps.
// ═══════════════════════════════════════════════════════════════════════════════
package hitlist

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

// NoMoreDocs is returned by iterators once they are exhausted.
const NoMoreDocs = math.MaxInt32

// SegmentID is a stable handle for one immutable segment.
type SegmentID uuid.UUID

// NewSegmentID returns a fresh random segment id.
func NewSegmentID() SegmentID {
	return SegmentID(uuid.New())
}

func (id SegmentID) String() string {
	return uuid.UUID(id).String()
}

// PostingsIterator walks the ascending document ids of one term.
//
// DocID is -1 before the first call to NextDoc or Advance and NoMoreDocs
// after exhaustion.
type PostingsIterator interface {
	DocID() int
	NextDoc() int
	// Advance moves to the first document >= target. target must be greater
	// than the current document.
	Advance(target int) int
	// Freq is the term frequency in the current document.
	Freq() int
	// Cost estimates the number of documents the iterator will visit.
	Cost() int64
}

// TermsEnum yields the terms of one field in sorted order.
type TermsEnum interface {
	Next() bool
	Term() string
	Postings() PostingsIterator
}

// FieldStats carries the per-field statistics the similarity needs.
type FieldStats struct {
	DocCount    int   // documents with at least one term in the field
	SumTermFreq int64 // total number of term occurrences in the field
}

// Segment is the read-only view the core consumes.
type Segment interface {
	ID() SegmentID
	MaxDoc() int
	// Terms returns a fresh enumerator over field; absent fields yield an
	// empty enumerator.
	Terms(field string) TermsEnum
	// Postings returns the posting iterator for one term, or nil.
	Postings(field, term string) PostingsIterator
	DocFreq(field, term string) int
	FieldStats(field string) FieldStats
	FieldLength(field string, doc int) int
	// OnClose registers fn to run when the segment is closed. It reports
	// false (and does not register) if the segment is already closed.
	OnClose(fn func(SegmentID)) bool
}

// ═══════════════════════════════════════════════════════════════════════════════
// POSTING LISTS
// ═══════════════════════════════════════════════════════════════════════════════

type postingList struct {
	docs     *roaring.Bitmap
	freqs    []int32          // parallel to docs in ascending order, once frozen
	building map[uint32]int32 // doc → freq while the builder is open
}

func newPostingList() *postingList {
	return &postingList{
		docs:     roaring.NewBitmap(),
		building: make(map[uint32]int32),
	}
}

func (p *postingList) add(doc uint32) {
	p.docs.Add(doc)
	p.building[doc]++
}

func (p *postingList) freeze() {
	p.docs.RunOptimize()
	p.freqs = make([]int32, 0, p.docs.GetCardinality())
	it := p.docs.Iterator()
	for it.HasNext() {
		p.freqs = append(p.freqs, p.building[it.Next()])
	}
	p.building = nil
}

func (p *postingList) docFreq() int {
	return int(p.docs.GetCardinality())
}

func (p *postingList) iterator() PostingsIterator {
	return &bitmapPostings{list: p, it: p.docs.Iterator(), doc: -1}
}

// bitmapPostings adapts a roaring iterator to PostingsIterator. Advance uses
// the container-level skipping of AdvanceIfNeeded.
type bitmapPostings struct {
	list *postingList
	it   roaring.IntPeekable
	doc  int
}

func (b *bitmapPostings) DocID() int { return b.doc }

func (b *bitmapPostings) NextDoc() int {
	if !b.it.HasNext() {
		b.doc = NoMoreDocs
		return b.doc
	}
	b.doc = int(b.it.Next())
	return b.doc
}

func (b *bitmapPostings) Advance(target int) int {
	if target >= NoMoreDocs || target < 0 {
		b.doc = NoMoreDocs
		return b.doc
	}
	b.it.AdvanceIfNeeded(uint32(target))
	return b.NextDoc()
}

func (b *bitmapPostings) Freq() int {
	if b.doc < 0 || b.doc == NoMoreDocs {
		return 0
	}
	rank := b.list.docs.Rank(uint32(b.doc))
	if rank == 0 || int(rank) > len(b.list.freqs) {
		return 0
	}
	return int(b.list.freqs[rank-1])
}

func (b *bitmapPostings) Cost() int64 {
	return int64(b.list.docs.GetCardinality())
}

type emptyPostings struct {
	doc int
}

func newEmptyPostings() *emptyPostings { return &emptyPostings{doc: -1} }

func (p *emptyPostings) DocID() int  { return p.doc }
func (p *emptyPostings) Freq() int   { return 0 }
func (p *emptyPostings) Cost() int64 { return 0 }

func (p *emptyPostings) NextDoc() int {
	p.doc = NoMoreDocs
	return p.doc
}

func (p *emptyPostings) Advance(_ int) int {
	p.doc = NoMoreDocs
	return p.doc
}

type emptyTermsEnum struct{}

func (emptyTermsEnum) Next() bool                 { return false }
func (emptyTermsEnum) Term() string               { return "" }
func (emptyTermsEnum) Postings() PostingsIterator { return newEmptyPostings() }

// ═══════════════════════════════════════════════════════════════════════════════
// MEMORY SEGMENT
// ═══════════════════════════════════════════════════════════════════════════════

type memoryField struct {
	dict    *termDict
	lengths map[int]int
	stats   FieldStats
}

// MemorySegment is an immutable in-memory segment produced by SegmentBuilder.
type MemorySegment struct {
	id     SegmentID
	maxDoc int
	fields map[string]*memoryField

	mu        sync.Mutex
	closed    bool
	listeners []func(SegmentID)
}

var _ Segment = (*MemorySegment)(nil)

func (s *MemorySegment) ID() SegmentID { return s.id }

func (s *MemorySegment) MaxDoc() int { return s.maxDoc }

// Fields returns the indexed field names in sorted order.
func (s *MemorySegment) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MemorySegment) Terms(field string) TermsEnum {
	f, ok := s.fields[field]
	if !ok || s.Closed() {
		return emptyTermsEnum{}
	}
	return &dictTermsEnum{next: f.dict.first()}
}

// TermsFrom returns an enumerator positioned before the first term >= lower.
func (s *MemorySegment) TermsFrom(field, lower string) TermsEnum {
	f, ok := s.fields[field]
	if !ok || s.Closed() {
		return emptyTermsEnum{}
	}
	return &dictTermsEnum{next: f.dict.ceil(lower)}
}

func (s *MemorySegment) Postings(field, term string) PostingsIterator {
	f, ok := s.fields[field]
	if !ok || s.Closed() {
		return nil
	}
	p := f.dict.get(term)
	if p == nil {
		return nil
	}
	return p.iterator()
}

func (s *MemorySegment) DocFreq(field, term string) int {
	f, ok := s.fields[field]
	if !ok {
		return 0
	}
	p := f.dict.get(term)
	if p == nil {
		return 0
	}
	return p.docFreq()
}

func (s *MemorySegment) FieldStats(field string) FieldStats {
	f, ok := s.fields[field]
	if !ok {
		return FieldStats{}
	}
	return f.stats
}

func (s *MemorySegment) FieldLength(field string, doc int) int {
	f, ok := s.fields[field]
	if !ok {
		return 0
	}
	return f.lengths[doc]
}

func (s *MemorySegment) OnClose(fn func(SegmentID)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners = append(s.listeners, fn)
	return true
}

// Closed reports whether Close has been called.
func (s *MemorySegment) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the segment closed and runs the close listeners once, in
// registration order. Closing twice is a no-op.
func (s *MemorySegment) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s.id)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SEGMENT BUILDER
// ═══════════════════════════════════════════════════════════════════════════════
// EXAMPLE:
// --------
//
//	b := NewSegmentBuilder(nil)
//	b.AddText(0, "body", "the quick brown fox")
//	b.AddKeyword(0, "price", "10")
//	seg := b.Build()
// ═══════════════════════════════════════════════════════════════════════════════

// SegmentBuilder accumulates documents and freezes them into a MemorySegment.
// It is safe for concurrent use.
type SegmentBuilder struct {
	mu       sync.Mutex
	analyzer *Analyzer
	logger   *slog.Logger
	fields   map[string]*memoryField
	maxDoc   int
	built    bool
}

// NewSegmentBuilder creates a builder. A nil analyzer uses the default
// analyzer configuration.
func NewSegmentBuilder(analyzer *Analyzer) *SegmentBuilder {
	if analyzer == nil {
		analyzer = NewAnalyzer(DefaultAnalyzerConfig())
	}
	return &SegmentBuilder{
		analyzer: analyzer,
		logger:   slog.Default(),
		fields:   make(map[string]*memoryField),
	}
}

// SetLogger replaces the builder's logger.
func (b *SegmentBuilder) SetLogger(l *slog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = loggerOrDefault(l)
}

// AddText analyzes text and indexes the resulting tokens for doc.
func (b *SegmentBuilder) AddText(doc int, field, text string) {
	tokens := b.analyzer.Analyze(text)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger.Debug("indexing text", slog.Int("doc", doc), slog.String("field", field), slog.Int("tokens", len(tokens)))
	for _, token := range tokens {
		b.addTermLocked(doc, field, token)
	}
}

// AddKeyword indexes value verbatim as a single term of field.
func (b *SegmentBuilder) AddKeyword(doc int, field, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addTermLocked(doc, field, value)
}

// AddDocument reserves doc without indexing any field, so documents with no
// terms still count towards MaxDoc.
func (b *SegmentBuilder) AddDocument(doc int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if doc+1 > b.maxDoc {
		b.maxDoc = doc + 1
	}
}

func (b *SegmentBuilder) addTermLocked(doc int, field, term string) {
	if b.built {
		panic("hitlist: SegmentBuilder used after Build")
	}
	if doc < 0 {
		panic("hitlist: negative document id")
	}
	f, ok := b.fields[field]
	if !ok {
		f = &memoryField{
			dict:    newTermDict(int64(len(b.fields) + 1)),
			lengths: make(map[int]int),
		}
		b.fields[field] = f
	}
	f.dict.getOrInsert(term).add(uint32(doc))
	if f.lengths[doc] == 0 {
		f.stats.DocCount++
	}
	f.lengths[doc]++
	f.stats.SumTermFreq++
	if doc+1 > b.maxDoc {
		b.maxDoc = doc + 1
	}
}

// Build freezes the builder into a segment with a fresh id. The builder
// cannot be used afterwards.
func (b *SegmentBuilder) Build() *MemorySegment {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = true

	for _, f := range b.fields {
		for n := f.dict.first(); n != nil; n = n.tower[0] {
			n.postings.freeze()
		}
	}

	seg := &MemorySegment{
		id:     NewSegmentID(),
		maxDoc: b.maxDoc,
		fields: b.fields,
	}
	b.logger.Info("segment built",
		slog.String("segment", seg.id.String()),
		slog.Int("max_doc", seg.maxDoc),
		slog.Int("fields", len(seg.fields)),
	)
	return seg
}
