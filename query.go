package hitlist

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY TREE
// ═══════════════════════════════════════════════════════════════════════════════
// Queries arrive pre-built; nothing here parses text. Leaves match terms,
// ranges or everything, and BooleanQuery nodes combine them:
//
//	q := hitlist.NewBooleanQuery(0)
//	q.Add(&hitlist.TermQuery{Field: "body", Term: "quick"}, hitlist.Must)
//	q.Add(&hitlist.TermQuery{Field: "body", Term: "fox"}, hitlist.Should)
//	q.Add(&hitlist.TermQuery{Field: "body", Term: "lazy"}, hitlist.MustNot)
//
// Turning a tree into scorers is a bottom-up fold: every node asks its
// children for their scorers and returns its own. Nothing is written back
// into the tree, so one query value can be scored against many segments at
// the same time.
// ═══════════════════════════════════════════════════════════════════════════════

// Query is a node of a query tree. The set of implementations is closed.
type Query interface {
	fmt.Stringer
	scorer(sc *scoreContext) (Scorer, error)
	explain(sc *scoreContext, doc int) (*Explanation, error)
}

// scoreContext carries what a fold over one segment needs.
type scoreContext struct {
	seg             Segment
	cache           *FieldCache
	sim             Similarity
	coord           CoordFunc
	bitsetThreshold int
	logger          *slog.Logger
	cancel          *cancelCheck // nil outside Search
}

// boostOrOne treats an unset boost as 1.
func boostOrOne(b float64) float64 {
	if b == 0 {
		return 1
	}
	return b
}

func boostSuffix(b float64) string {
	if b == 0 || b == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(b, 'g', -1, 64)
}

// ═══════════════════════════════════════════════════════════════════════════════
// LEAVES
// ═══════════════════════════════════════════════════════════════════════════════

// TermQuery matches documents containing Term in Field, scored by the
// searcher's Similarity. Zero Boost means 1.
type TermQuery struct {
	Field string
	Term  string
	Boost float64
}

func (q *TermQuery) String() string {
	return q.Field + ":" + q.Term + boostSuffix(q.Boost)
}

func (q *TermQuery) scorer(sc *scoreContext) (Scorer, error) {
	postings := sc.seg.Postings(q.Field, q.Term)
	if postings == nil {
		return newEmptyScorer(), nil
	}
	return &termScorer{
		postings: postings,
		seg:      sc.seg,
		sim:      sc.sim,
		stats:    NewTermStats(sc.seg, q.Field, q.Term),
		boost:    boostOrOne(q.Boost),
	}, nil
}

func (q *TermQuery) explain(sc *scoreContext, doc int) (*Explanation, error) {
	postings := sc.seg.Postings(q.Field, q.Term)
	if postings == nil || postings.Advance(doc) != doc {
		return noMatch(fmt.Sprintf("no matching term %s", q)), nil
	}
	stats := NewTermStats(sc.seg, q.Field, q.Term)
	simExpl := sc.sim.Explain(stats, postings.Freq(), sc.seg.FieldLength(q.Field, doc))

	boost := boostOrOne(q.Boost)
	desc := fmt.Sprintf("weight(%s in %d)", q, doc)
	if boost == 1 {
		simExpl.Description = desc + " " + simExpl.Description
		return simExpl, nil
	}
	return NewExplanation(boost*simExpl.Value, true, desc+", product of:",
		NewExplanation(boost, true, "boost"),
		simExpl,
	), nil
}

// MatchAllQuery matches every document with a constant score of Boost
// (zero means 1).
type MatchAllQuery struct {
	Boost float64
}

func (q *MatchAllQuery) String() string { return "*:*" + boostSuffix(q.Boost) }

func (q *MatchAllQuery) scorer(sc *scoreContext) (Scorer, error) {
	s := newRangeScorer(sc.seg.MaxDoc(), boostOrOne(q.Boost), nil)
	s.cancel = sc.cancel
	return s, nil
}

func (q *MatchAllQuery) explain(sc *scoreContext, doc int) (*Explanation, error) {
	if doc < 0 || doc >= sc.seg.MaxDoc() {
		return noMatch(fmt.Sprintf("%s doesn't match id %d", q, doc)), nil
	}
	return NewExplanation(boostOrOne(q.Boost), true, q.String()), nil
}

// FieldRangeQuery matches documents whose cached value of Field lies between
// Lower and Upper, with a constant score of Boost (zero means 1). An empty
// bound is open. Bounds are parsed as Type, which must be one of the numeric
// types or SortString.
//
// Documents without a value never match: numeric fields consult
// DocsWithField, string fields reject the null ordinal.
type FieldRangeQuery struct {
	Field        string
	Type         SortType
	Lower        string
	Upper        string
	IncludeLower bool
	IncludeUpper bool
	Boost        float64
}

func (q *FieldRangeQuery) String() string {
	var b strings.Builder
	b.WriteString(q.Field)
	b.WriteString(":")
	if q.IncludeLower {
		b.WriteString("[")
	} else {
		b.WriteString("{")
	}
	b.WriteString(orStar(q.Lower))
	b.WriteString(" TO ")
	b.WriteString(orStar(q.Upper))
	if q.IncludeUpper {
		b.WriteString("]")
	} else {
		b.WriteString("}")
	}
	b.WriteString(boostSuffix(q.Boost))
	return b.String()
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// predicate resolves the cached values of the field and returns the per-doc
// test, without the docs-with-field check.
func (q *FieldRangeQuery) predicate(sc *scoreContext) (func(doc int) bool, error) {
	switch q.Type {
	case SortInt32:
		lo, hi, err := parseBounds(q, func(s string) (int32, error) {
			n, err := strconv.ParseInt(s, 10, 32)
			return int32(n), err
		})
		if err != nil {
			return nil, err
		}
		values, err := sc.cache.Int32s(sc.seg, q.Field)
		if err != nil {
			return nil, err
		}
		return func(doc int) bool { return inRange(q, at(values, doc), lo, hi) }, nil
	case SortInt64:
		lo, hi, err := parseBounds(q, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
		if err != nil {
			return nil, err
		}
		values, err := sc.cache.Int64s(sc.seg, q.Field)
		if err != nil {
			return nil, err
		}
		return func(doc int) bool { return inRange(q, at(values, doc), lo, hi) }, nil
	case SortFloat32:
		lo, hi, err := parseBounds(q, func(s string) (float32, error) {
			f, err := strconv.ParseFloat(s, 32)
			return float32(f), err
		})
		if err != nil {
			return nil, err
		}
		values, err := sc.cache.Float32s(sc.seg, q.Field)
		if err != nil {
			return nil, err
		}
		return func(doc int) bool { return inRange(q, at(values, doc), lo, hi) }, nil
	case SortFloat64:
		lo, hi, err := parseBounds(q, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
		if err != nil {
			return nil, err
		}
		values, err := sc.cache.Float64s(sc.seg, q.Field)
		if err != nil {
			return nil, err
		}
		return func(doc int) bool { return inRange(q, at(values, doc), lo, hi) }, nil
	case SortString:
		idx, err := sc.cache.StringIndex(sc.seg, q.Field)
		if err != nil {
			return nil, err
		}
		lo, hi := q.ordinalBounds(idx)
		return func(doc int) bool {
			ord := idx.Ord(doc)
			return ord != 0 && ord >= lo && ord <= hi
		}, nil
	}
	return nil, &SortFieldError{Field: q.Field, Type: q.Type, cause: ErrUnknownSortType}
}

// ordinalBounds maps the string bounds to an inclusive ordinal window.
func (q *FieldRangeQuery) ordinalBounds(idx *StringIndex) (int32, int32) {
	terms := idx.Lookup[1:]
	lo, hi := 1, len(idx.Lookup)-1
	if q.Lower != "" {
		i := sort.SearchStrings(terms, q.Lower)
		if !q.IncludeLower && i < len(terms) && terms[i] == q.Lower {
			i++
		}
		lo = i + 1
	}
	if q.Upper != "" {
		i := sort.SearchStrings(terms, q.Upper)
		if q.IncludeUpper && i < len(terms) && terms[i] == q.Upper {
			i++
		}
		hi = i
	}
	return int32(lo), int32(hi)
}

type orderedValue interface {
	~int32 | ~int64 | ~float32 | ~float64
}

type bounds[T orderedValue] struct {
	v   T
	set bool
}

func parseBounds[T orderedValue](q *FieldRangeQuery, parse func(string) (T, error)) (lo, hi bounds[T], err error) {
	if q.Lower != "" {
		if lo.v, err = parse(q.Lower); err != nil {
			return lo, hi, fmt.Errorf("range %s: lower bound: %w", q, err)
		}
		lo.set = true
	}
	if q.Upper != "" {
		if hi.v, err = parse(q.Upper); err != nil {
			return lo, hi, fmt.Errorf("range %s: upper bound: %w", q, err)
		}
		hi.set = true
	}
	return lo, hi, nil
}

func inRange[T orderedValue](q *FieldRangeQuery, v T, lo, hi bounds[T]) bool {
	if lo.set && (v < lo.v || (v == lo.v && !q.IncludeLower)) {
		return false
	}
	if hi.set && (v > hi.v || (v == hi.v && !q.IncludeUpper)) {
		return false
	}
	return true
}

func (q *FieldRangeQuery) scorer(sc *scoreContext) (Scorer, error) {
	accept, err := q.predicate(sc)
	if err != nil {
		return nil, err
	}
	docs, err := sc.cache.DocsWithField(sc.seg, q.Field)
	if err != nil {
		return nil, err
	}
	s := newBitmapScorer(docs, boostOrOne(q.Boost), accept)
	s.cancel = sc.cancel
	return s, nil
}

func (q *FieldRangeQuery) explain(sc *scoreContext, doc int) (*Explanation, error) {
	accept, err := q.predicate(sc)
	if err != nil {
		return nil, err
	}
	docs, err := sc.cache.DocsWithField(sc.seg, q.Field)
	if err != nil {
		return nil, err
	}
	if doc < 0 || !docs.Contains(uint32(doc)) || !accept(doc) {
		return noMatch(fmt.Sprintf("%s doesn't match id %d", q, doc)), nil
	}
	return NewExplanation(boostOrOne(q.Boost), true, q.String()), nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// BOOLEAN QUERY
// ═══════════════════════════════════════════════════════════════════════════════

// Occur is the membership kind of a boolean clause.
type Occur int

const (
	Must Occur = iota
	Should
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "MUST"
	case Should:
		return "SHOULD"
	case MustNot:
		return "MUST_NOT"
	}
	return fmt.Sprintf("Occur(%d)", int(o))
}

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	}
	return ""
}

// BooleanClause is one child of a BooleanQuery.
type BooleanClause struct {
	Query Query
	Occur Occur
}

func (c BooleanClause) String() string {
	s := c.Query.String()
	if _, nested := c.Query.(*BooleanQuery); nested {
		s = "(" + s + ")"
	}
	return c.Occur.prefix() + s
}

// BooleanQuery combines clauses. Build it with NewBooleanQuery (or
// Searcher.NewBooleanQuery) and Add; the exported fields may be set freely
// before searching.
type BooleanQuery struct {
	// MinimumShouldMatch is the number of SHOULD clauses a document must hit.
	// Without MUST clauses at least one is always required.
	MinimumShouldMatch int
	// DisableCoord skips the coordination factor.
	DisableCoord bool
	// Boost multiplies the score. Zero means 1.
	Boost float64

	clauses    []BooleanClause
	maxClauses int
}

// NewBooleanQuery creates an empty query accepting up to maxClauses clauses.
// A non-positive limit means DefaultMaxClauseCount.
func NewBooleanQuery(maxClauses int) *BooleanQuery {
	if maxClauses <= 0 {
		maxClauses = DefaultMaxClauseCount
	}
	return &BooleanQuery{maxClauses: maxClauses}
}

// Add appends a clause. It fails with a *TooManyClausesError once the limit
// is reached, leaving the query unchanged.
func (q *BooleanQuery) Add(query Query, occur Occur) error {
	if query == nil {
		return ErrNilQuery
	}
	if occur < Must || occur > MustNot {
		return fmt.Errorf("boolean clause: %w: %s", ErrUnknownOccur, occur)
	}
	if q.maxClauses <= 0 {
		q.maxClauses = DefaultMaxClauseCount
	}
	if len(q.clauses) >= q.maxClauses {
		return &TooManyClausesError{Max: q.maxClauses}
	}
	q.clauses = append(q.clauses, BooleanClause{Query: query, Occur: occur})
	return nil
}

// Clauses returns a copy of the clauses in insertion order.
func (q *BooleanQuery) Clauses() []BooleanClause {
	out := make([]BooleanClause, len(q.clauses))
	copy(out, q.clauses)
	return out
}

func (q *BooleanQuery) String() string {
	parts := make([]string, len(q.clauses))
	for i, c := range q.clauses {
		parts[i] = c.String()
	}
	s := strings.Join(parts, " ")
	if q.MinimumShouldMatch > 0 {
		s += "~" + strconv.Itoa(q.MinimumShouldMatch)
	}
	return s + boostSuffix(q.Boost)
}

// coordFactors precomputes coord(m, possible) × boost for m = 0..possible.
func (q *BooleanQuery) coordFactors(coord CoordFunc, possible int) []float64 {
	boost := boostOrOne(q.Boost)
	factors := make([]float64, possible+1)
	for m := range factors {
		if q.DisableCoord || coord == nil {
			factors[m] = boost
		} else {
			factors[m] = coord(m, possible) * boost
		}
	}
	return factors
}

func (q *BooleanQuery) scorer(sc *scoreContext) (Scorer, error) {
	var required, optional, prohibited []Scorer
	for _, c := range q.clauses {
		s, err := c.Query.scorer(sc)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case Must:
			required = append(required, s)
		case Should:
			optional = append(optional, s)
		case MustNot:
			prohibited = append(prohibited, s)
		}
	}

	possible := len(required) + len(optional)
	if possible == 0 || q.MinimumShouldMatch > len(optional) {
		return newEmptyScorer(), nil
	}
	coords := q.coordFactors(sc.coord, possible)

	if len(optional) == 0 && len(prohibited) == 0 && q.MinimumShouldMatch <= 0 {
		conj := newConjunctionScorer(required, coords[possible])
		conj.cancel = sc.cancel
		return conj, nil
	}
	if len(required) == 0 && sc.bitsetThreshold > 0 && len(optional) >= sc.bitsetThreshold {
		sc.logger.Debug("using bitset disjunction", slog.Int("should_clauses", len(optional)))
	}
	bs := newBooleanScorer(required, optional, prohibited, q.MinimumShouldMatch, coords, sc.bitsetThreshold)
	bs.setCancel(sc.cancel)
	return bs, nil
}

// explain mirrors the matching predicate of the scorer clause by clause.
func (q *BooleanQuery) explain(sc *scoreContext, doc int) (*Explanation, error) {
	sum := NewExplanation(0, false, "sum of:")
	var (
		total         float64
		matched       int
		possible      int
		shouldMatched int
		numRequired   int
		fail          bool
	)

	for _, c := range q.clauses {
		e, err := c.Query.explain(sc, doc)
		if err != nil {
			return nil, err
		}
		if c.Occur != MustNot {
			possible++
		}
		if c.Occur == Must {
			numRequired++
		}

		switch {
		case e.Match && c.Occur == MustNot:
			sum.AddDetail(noMatch(fmt.Sprintf("match on prohibited clause (%s)", c.Query), e))
			fail = true
		case e.Match:
			sum.AddDetail(e)
			total += e.Value
			matched++
			if c.Occur == Should {
				shouldMatched++
			}
		case c.Occur == Must:
			sum.AddDetail(noMatch(fmt.Sprintf("no match on required clause (%s)", c.Query), e))
			fail = true
		}
	}

	if fail {
		sum.Description = "Failure to meet condition(s) of required/prohibited clause(s)"
		return sum, nil
	}

	minShould := q.MinimumShouldMatch
	if numRequired == 0 && minShould < 1 {
		minShould = 1
	}
	if shouldMatched < minShould {
		sum.Description = fmt.Sprintf("Failure to match minimum number of optional clauses: %d", minShould)
		return sum, nil
	}

	sum.Match = true
	sum.Value = total

	result := NewExplanation(total, true, "product of:", sum)
	if !q.DisableCoord && sc.coord != nil {
		factor := sc.coord(matched, possible)
		result.Value *= factor
		result.AddDetail(NewExplanation(factor, true, fmt.Sprintf("coord(%d/%d)", matched, possible)))
	}
	if boost := boostOrOne(q.Boost); boost != 1 {
		result.Value *= boost
		result.AddDetail(NewExplanation(boost, true, "boost"))
	}
	if len(result.Details) == 1 {
		return sum, nil
	}
	return result, nil
}
