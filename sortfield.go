package hitlist

import (
	"fmt"
	"strings"
)

// SortType selects how a SortField orders documents.
type SortType int

const (
	// SortScore orders by relevance, best score first.
	SortScore SortType = iota
	// SortDoc orders by index order, smallest document id first.
	SortDoc
	SortInt32
	SortInt64
	SortFloat32
	SortFloat64
	// SortString orders by term ordinal, which is byte order of the terms.
	SortString
	// SortStringLocale orders terms with the collation rules of a locale.
	SortStringLocale
	// SortCustom delegates to a CustomSource.
	SortCustom
	// SortAuto inspects the first term of the field and picks Int32, Int64,
	// Float32 or String.
	SortAuto

	// typeDocsWithField keys the docs-with-field bitmaps in the cache.
	typeDocsWithField SortType = 100
)

var sortTypeNames = map[SortType]string{
	SortScore:         "SCORE",
	SortDoc:           "DOC",
	SortInt32:         "INT32",
	SortInt64:         "INT64",
	SortFloat32:       "FLOAT32",
	SortFloat64:       "FLOAT64",
	SortString:        "STRING",
	SortStringLocale:  "STRING_LOCALE",
	SortCustom:        "CUSTOM",
	SortAuto:          "AUTO",
	typeDocsWithField: "DOCS_WITH_FIELD",
}

func (t SortType) String() string {
	if name, ok := sortTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SortType(%d)", int(t))
}

// usesCache reports whether comparators of this type read the field cache.
func (t SortType) usesCache() bool {
	switch t {
	case SortInt32, SortInt64, SortFloat32, SortFloat64, SortString, SortStringLocale, SortCustom, SortAuto:
		return true
	}
	return false
}

// SortField is one criterion of a multi-field sort.
type SortField struct {
	Field   string
	Type    SortType
	Reverse bool
	// Locale is a BCP 47 tag, used by SortStringLocale.
	Locale string
	// Custom builds per-segment values for SortCustom.
	Custom CustomSource
}

// Relevance sorts by score, best first.
func Relevance() SortField { return SortField{Type: SortScore} }

// IndexOrder sorts by document id, smallest first.
func IndexOrder() SortField { return SortField{Type: SortDoc} }

func (sf SortField) String() string {
	var b strings.Builder
	switch sf.Type {
	case SortScore:
		b.WriteString("<score>")
	case SortDoc:
		b.WriteString("<doc>")
	default:
		fmt.Fprintf(&b, "<%s:%q", strings.ToLower(sf.Type.String()), sf.Field)
		if sf.Locale != "" {
			fmt.Fprintf(&b, " locale=%s", sf.Locale)
		}
		if sf.Custom != nil {
			fmt.Fprintf(&b, " source=%s", sf.Custom.ID())
		}
		b.WriteString(">")
	}
	if sf.Reverse {
		b.WriteString("!")
	}
	return b.String()
}

// validate catches configuration faults before any cache work starts.
func (sf SortField) validate() error {
	switch sf.Type {
	case SortScore, SortDoc:
		return nil
	case SortInt32, SortInt64, SortFloat32, SortFloat64, SortString, SortAuto:
	case SortStringLocale:
		if _, err := parseLocale(sf.Locale); err != nil {
			return &SortFieldError{Field: sf.Field, Type: sf.Type, cause: err}
		}
	case SortCustom:
		if sf.Custom == nil {
			return &SortFieldError{Field: sf.Field, Type: sf.Type, cause: ErrMissingCustomSource}
		}
	default:
		return &SortFieldError{Field: sf.Field, Type: sf.Type, cause: ErrUnknownSortType}
	}
	return nil
}
