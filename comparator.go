package hitlist

import (
	"bytes"
	"cmp"
)

// Comparator orders the documents of one segment by one SortField.
//
// It is a closed union: kind selects which of the value slices is live, and
// Compare switches on it directly instead of going through an interface per
// comparison. Comparators are not safe for concurrent use, but the cached
// slices they point to are immutable and shared.
type Comparator struct {
	field SortField
	kind  SortType

	ints     []int32
	longs    []int64
	floats   []float32
	doubles  []float64
	strs     *StringIndex
	collated *CollatedIndex
	custom   CustomValues
}

// NewComparator resolves sf against seg, loading values from cache as
// needed. SortAuto is resolved to its concrete type here.
func NewComparator(cache *FieldCache, seg Segment, sf SortField) (*Comparator, error) {
	if err := sf.validate(); err != nil {
		return nil, err
	}
	c := &Comparator{field: sf, kind: sf.Type}
	if !sf.Type.usesCache() {
		return c, nil
	}
	if cache == nil {
		cache = NewFieldCache(nil)
	}

	if c.kind == SortAuto {
		resolved, err := cache.Auto(seg, sf.Field)
		if err != nil {
			return nil, err
		}
		c.kind = resolved
	}

	var err error
	switch c.kind {
	case SortInt32:
		c.ints, err = cache.Int32s(seg, sf.Field)
	case SortInt64:
		c.longs, err = cache.Int64s(seg, sf.Field)
	case SortFloat32:
		c.floats, err = cache.Float32s(seg, sf.Field)
	case SortFloat64:
		c.doubles, err = cache.Float64s(seg, sf.Field)
	case SortString:
		c.strs, err = cache.StringIndex(seg, sf.Field)
	case SortStringLocale:
		c.collated, err = cache.Collated(seg, sf.Field, sf.Locale)
	case SortCustom:
		c.custom, err = cache.Custom(seg, sf.Field, sf.Custom)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SortField returns the field this comparator was built from.
func (c *Comparator) SortField() SortField { return c.field }

// Type is the resolved comparison type (never SortAuto).
func (c *Comparator) Type() SortType { return c.kind }

// Compare returns -1 if a sorts before b, 1 if after, 0 if tied. Reverse is
// not applied here; the hit queue swaps operands for reversed fields.
func (c *Comparator) Compare(a, b ScoredDoc) int {
	switch c.kind {
	case SortScore:
		return cmp.Compare(b.Score, a.Score)
	case SortDoc:
		return cmp.Compare(a.Doc, b.Doc)
	case SortInt32:
		return cmp.Compare(at(c.ints, a.Doc), at(c.ints, b.Doc))
	case SortInt64:
		return cmp.Compare(at(c.longs, a.Doc), at(c.longs, b.Doc))
	case SortFloat32:
		return cmp.Compare(at(c.floats, a.Doc), at(c.floats, b.Doc))
	case SortFloat64:
		return cmp.Compare(at(c.doubles, a.Doc), at(c.doubles, b.Doc))
	case SortString:
		return cmp.Compare(c.strs.Ord(a.Doc), c.strs.Ord(b.Doc))
	case SortStringLocale:
		return c.compareCollated(a.Doc, b.Doc)
	case SortCustom:
		return sign(c.custom.Compare(a.Doc, b.Doc))
	}
	return 0
}

// Null sorts before every string; otherwise collation keys decide.
func (c *Comparator) compareCollated(a, b int) int {
	oa, ob := c.collated.Ord(a), c.collated.Ord(b)
	switch {
	case oa == ob:
		return 0
	case oa == 0:
		return -1
	case ob == 0:
		return 1
	}
	return bytes.Compare(c.collated.Keys[oa], c.collated.Keys[ob])
}

// SortValue returns the value of doc that Compare looks at: float64 for
// scores, int for document ids, the numeric type of numeric fields, string
// (or nil when missing) for string fields, and CustomValues.Value for
// custom fields.
func (c *Comparator) SortValue(doc ScoredDoc) any {
	switch c.kind {
	case SortScore:
		return doc.Score
	case SortDoc:
		return doc.Doc
	case SortInt32:
		return at(c.ints, doc.Doc)
	case SortInt64:
		return at(c.longs, doc.Doc)
	case SortFloat32:
		return at(c.floats, doc.Doc)
	case SortFloat64:
		return at(c.doubles, doc.Doc)
	case SortString:
		if v, ok := c.strs.Value(doc.Doc); ok {
			return v
		}
		return nil
	case SortStringLocale:
		if v, ok := c.collated.Value(doc.Doc); ok {
			return v
		}
		return nil
	case SortCustom:
		return c.custom.Value(doc.Doc)
	}
	return nil
}

func at[T any](values []T, doc int) T {
	if doc < 0 || doc >= len(values) {
		var zero T
		return zero
	}
	return values[doc]
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
