package hitlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FIELD CACHE: Per-Segment Derived Values for Sorting
// ═══════════════════════════════════════════════════════════════════════════════
// Sorting by a field needs random access to "the value of field F for doc D".
// Postings only give the inverse mapping (term → docs), so the cache
// "uninverts" a field once per segment:
//
//	price terms:  "10" → [0]     "5" → [1, 2]
//	Int32s(price): [10, 5, 5]
//
//	name terms:   "ann" → [2]    "bob" → [0]
//	StringIndex:  lookup = [<null>, "ann", "bob"]   order = [2, 0, 1]
//
// Entries are keyed by (segment, field, type[, locale | source]) and built at
// most once: concurrent requests for the same key join the in-flight build
// through a singleflight group, and a failed build is never stored, so the
// next request simply tries again.
//
// Entries live until their segment closes (the cache registers itself as a
// close listener the first time it stores a value for a segment) or until
// Purge/PurgeAll is called.
// ═══════════════════════════════════════════════════════════════════════════════

// CacheKey identifies one derived value.
type CacheKey struct {
	Segment SegmentID
	Field   string
	Type    SortType
	Locale  string // SortStringLocale only
	Source  string // SortCustom only: CustomSource.ID()
}

func (k CacheKey) String() string {
	s := fmt.Sprintf("%s/%q/%s", k.Segment, k.Field, k.Type)
	if k.Locale != "" {
		s += "/locale=" + k.Locale
	}
	if k.Source != "" {
		s += "/source=" + strconv.Quote(k.Source)
	}
	return s
}

// BuildFunc computes the value of a cache key from the segment.
type BuildFunc func(seg Segment) (any, error)

// CacheEntry is a snapshot of one stored value, returned by Entries.
type CacheEntry struct {
	Key   CacheKey
	Value any
}

// StringIndex maps documents to term ordinals and ordinals back to terms.
// Ordinal 0 is reserved for documents without a value.
type StringIndex struct {
	Order  []int32  // doc → ordinal
	Lookup []string // ordinal → term; Lookup[0] is the null slot
}

// Ord returns the ordinal of doc; 0 means no value.
func (s *StringIndex) Ord(doc int) int32 {
	if doc < 0 || doc >= len(s.Order) {
		return 0
	}
	return s.Order[doc]
}

// Value returns the term of doc and whether the document has one.
func (s *StringIndex) Value(doc int) (string, bool) {
	ord := s.Ord(doc)
	if ord == 0 {
		return "", false
	}
	return s.Lookup[ord], true
}

// NumOrds is the number of distinct terms plus the null slot.
func (s *StringIndex) NumOrds() int { return len(s.Lookup) }

// CollatedIndex extends a StringIndex with one collation key per ordinal, so
// that locale-aware comparison is a byte comparison.
type CollatedIndex struct {
	*StringIndex
	Locale string
	Keys   [][]byte // ordinal → collation key; Keys[0] is nil
}

// CustomSource produces per-segment sort values for SortCustom fields.
type CustomSource interface {
	// ID distinguishes sources in the cache; equal IDs must build equal values.
	ID() string
	Build(maxDoc int, terms TermsEnum) (CustomValues, error)
}

// CustomValues compares documents of one segment.
type CustomValues interface {
	Compare(a, b int) int
	Value(doc int) any
}

// FieldCache stores derived values for any number of segments. It is safe
// for concurrent use; share one instance between all searchers.
type FieldCache struct {
	mu      sync.RWMutex
	entries map[SegmentID]map[CacheKey]any
	// Segments holding our close listener. Purges keep it; only the
	// listener itself removes a segment.
	registered map[SegmentID]struct{}
	group      singleflight.Group
	logger     *slog.Logger
	builds     atomic.Int64
}

// NewFieldCache creates an empty cache. A nil logger uses slog.Default().
func NewFieldCache(logger *slog.Logger) *FieldCache {
	return &FieldCache{
		entries:    make(map[SegmentID]map[CacheKey]any),
		registered: make(map[SegmentID]struct{}),
		logger:     loggerOrDefault(logger),
	}
}

// GetOrBuild returns the value stored for key, building it with build if
// needed. Concurrent callers for the same key share a single build and all
// observe its result or its error.
func (c *FieldCache) GetOrBuild(seg Segment, key CacheKey, build BuildFunc) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A build that finished between lookup and Do has already stored.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		c.builds.Add(1)
		start := time.Now()
		v, err := build(seg)
		if err != nil {
			c.logger.Warn("field cache build failed",
				slog.String("key", key.String()),
				slog.Any("error", err),
			)
			return nil, err
		}
		c.store(seg, key, v)
		c.logger.Debug("field cache entry built",
			slog.String("segment", key.Segment.String()),
			slog.String("field", key.Field),
			slog.String("type", key.Type.String()),
			slog.Duration("took", time.Since(start)),
		)
		return v, nil
	})
	return v, err
}

func (c *FieldCache) lookup(key CacheKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key.Segment][key]
	return v, ok
}

func (c *FieldCache) store(seg Segment, key CacheKey, v any) {
	c.mu.Lock()
	perSegment, ok := c.entries[key.Segment]
	if !ok {
		perSegment = make(map[CacheKey]any)
		c.entries[key.Segment] = perSegment
	}
	perSegment[key] = v
	_, registered := c.registered[key.Segment]
	if !registered {
		c.registered[key.Segment] = struct{}{}
	}
	c.mu.Unlock()

	if !registered && !seg.OnClose(c.segmentClosed) {
		// Closed while we were building; nothing will purge it later.
		c.segmentClosed(key.Segment)
	}
}

// segmentClosed is the close listener registered once per segment.
func (c *FieldCache) segmentClosed(id SegmentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	delete(c.registered, id)
}

// Purge drops every entry of one segment. The segment's close listener
// stays registered.
func (c *FieldCache) Purge(id SegmentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// PurgeAll drops every entry.
func (c *FieldCache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[SegmentID]map[CacheKey]any)
}

// Entries lists the stored values, ordered by key.
func (c *FieldCache) Entries() []CacheEntry {
	c.mu.RLock()
	out := make([]CacheEntry, 0)
	for _, perSegment := range c.entries {
		for k, v := range perSegment {
			out = append(out, CacheEntry{Key: k, Value: v})
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// BuildCount is the number of builds started since the cache was created.
func (c *FieldCache) BuildCount() int64 {
	return c.builds.Load()
}

// Warm builds the entries needed by sortFields concurrently.
func (c *FieldCache) Warm(ctx context.Context, seg Segment, sortFields ...SortField) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sf := range sortFields {
		if !sf.Type.usesCache() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := NewComparator(c, seg, sf)
			return err
		})
	}
	return g.Wait()
}

// ═══════════════════════════════════════════════════════════════════════════════
// TYPED ACCESSORS
// ═══════════════════════════════════════════════════════════════════════════════

func (c *FieldCache) key(seg Segment, field string, t SortType) CacheKey {
	return CacheKey{Segment: seg.ID(), Field: field, Type: t}
}

// Int32s returns the int32 value of field for every document.
func (c *FieldCache) Int32s(seg Segment, field string) ([]int32, error) {
	key := c.key(seg, field, SortInt32)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		return uninvert(seg, key, func(s string) (int32, error) {
			n, err := strconv.ParseInt(s, 10, 32)
			return int32(n), err
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]int32), nil
}

// Int64s returns the int64 value of field for every document.
func (c *FieldCache) Int64s(seg Segment, field string) ([]int64, error) {
	key := c.key(seg, field, SortInt64)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		return uninvert(seg, key, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]int64), nil
}

// Float32s returns the float32 value of field for every document.
func (c *FieldCache) Float32s(seg Segment, field string) ([]float32, error) {
	key := c.key(seg, field, SortFloat32)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		return uninvert(seg, key, func(s string) (float32, error) {
			f, err := strconv.ParseFloat(s, 32)
			return float32(f), err
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Float64s returns the float64 value of field for every document.
func (c *FieldCache) Float64s(seg Segment, field string) ([]float64, error) {
	key := c.key(seg, field, SortFloat64)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		return uninvert(seg, key, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// uninvert writes the parsed value of every term into a dense doc-indexed
// array. Documents without a term keep the zero value.
func uninvert[T int32 | int64 | float32 | float64](seg Segment, key CacheKey, parse func(string) (T, error)) (any, error) {
	values := make([]T, seg.MaxDoc())
	terms := seg.Terms(key.Field)
	for terms.Next() {
		term := terms.Term()
		v, err := parse(term)
		if err != nil {
			return nil, &CacheBuildError{Key: key, Term: term, cause: err}
		}
		docs := terms.Postings()
		for doc := docs.NextDoc(); doc != NoMoreDocs; doc = docs.NextDoc() {
			if doc < len(values) {
				values[doc] = v
			}
		}
	}
	return values, nil
}

// StringIndex returns the ordinal index of field.
func (c *FieldCache) StringIndex(seg Segment, field string) (*StringIndex, error) {
	key := c.key(seg, field, SortString)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		idx := &StringIndex{
			Order:  make([]int32, seg.MaxDoc()),
			Lookup: []string{""},
		}
		terms := seg.Terms(field)
		for terms.Next() {
			idx.Lookup = append(idx.Lookup, terms.Term())
			ord := int32(len(idx.Lookup) - 1)
			docs := terms.Postings()
			for doc := docs.NextDoc(); doc != NoMoreDocs; doc = docs.NextDoc() {
				if doc < len(idx.Order) {
					idx.Order[doc] = ord
				}
			}
		}
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StringIndex), nil
}

func parseLocale(locale string) (language.Tag, error) {
	if locale == "" {
		return language.Und, fmt.Errorf("%w: empty locale", ErrInvalidLocale)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q: %w", ErrInvalidLocale, locale, err)
	}
	return tag, nil
}

// Collated returns the string index of field with collation keys for locale.
func (c *FieldCache) Collated(seg Segment, field, locale string) (*CollatedIndex, error) {
	tag, err := parseLocale(locale)
	if err != nil {
		return nil, err
	}
	key := c.key(seg, field, SortStringLocale)
	key.Locale = tag.String()
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		idx, err := c.StringIndex(seg, field)
		if err != nil {
			return nil, err
		}
		collator := collate.New(tag)
		var buf collate.Buffer
		keys := make([][]byte, len(idx.Lookup))
		for ord := 1; ord < len(idx.Lookup); ord++ {
			keys[ord] = append([]byte(nil), collator.KeyFromString(&buf, idx.Lookup[ord])...)
			buf.Reset()
		}
		return &CollatedIndex{StringIndex: idx, Locale: key.Locale, Keys: keys}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CollatedIndex), nil
}

// Custom returns the values src builds for field.
func (c *FieldCache) Custom(seg Segment, field string, src CustomSource) (CustomValues, error) {
	if src == nil {
		return nil, ErrMissingCustomSource
	}
	key := c.key(seg, field, SortCustom)
	key.Source = src.ID()
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		values, err := src.Build(seg.MaxDoc(), seg.Terms(field))
		if err != nil {
			return nil, &CacheBuildError{Key: key, cause: err}
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(CustomValues), nil
}

// DocsWithField returns the documents that have at least one term in field.
func (c *FieldCache) DocsWithField(seg Segment, field string) (*roaring.Bitmap, error) {
	key := c.key(seg, field, typeDocsWithField)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		bits := roaring.NewBitmap()
		terms := seg.Terms(field)
		for terms.Next() {
			docs := terms.Postings()
			for doc := docs.NextDoc(); doc != NoMoreDocs; doc = docs.NextDoc() {
				bits.Add(uint32(doc))
			}
		}
		bits.RunOptimize()
		return bits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*roaring.Bitmap), nil
}

// Auto resolves the concrete type of field by parsing its first term: an
// int32, then an int64, then a float32; anything else sorts as a string. A
// field without terms resolves to SortString.
func (c *FieldCache) Auto(seg Segment, field string) (SortType, error) {
	key := c.key(seg, field, SortAuto)
	v, err := c.GetOrBuild(seg, key, func(seg Segment) (any, error) {
		terms := seg.Terms(field)
		if !terms.Next() {
			return SortString, nil
		}
		term := terms.Term()
		if _, err := strconv.ParseInt(term, 10, 32); err == nil {
			return SortInt32, nil
		}
		if _, err := strconv.ParseInt(term, 10, 64); err == nil {
			return SortInt64, nil
		}
		if _, err := strconv.ParseFloat(term, 32); err == nil {
			return SortFloat32, nil
		}
		return SortString, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(SortType), nil
}
