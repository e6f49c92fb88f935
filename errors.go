package hitlist

import (
	"errors"
	"fmt"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════
// Three families of failures exist:
//
//  1. Configuration faults: bad capacity, unknown sort type, too many clauses.
//     Returned from constructors, never retried.
//  2. Cache build faults: a term that cannot be parsed for the declared type.
//     Delivered to every waiter of that build; the key stays buildable.
//  3. Cancellation: the caller's context tripped while scoring.
//
// A field missing from a segment, or a document failing a MUST/MUST_NOT
// predicate, is NOT an error.
var (
	ErrInvalidCapacity     = errors.New("queue capacity must be positive")
	ErrUnknownSortType     = errors.New("unknown sort field type")
	ErrTooManyClauses      = errors.New("too many boolean clauses")
	ErrMalformedTerm       = errors.New("malformed term for field type")
	ErrInvalidLocale       = errors.New("invalid collation locale")
	ErrMissingCustomSource = errors.New("custom sort field requires a source")
	ErrSearchCanceled      = errors.New("search canceled")
	ErrSegmentClosed       = errors.New("segment is closed")
	ErrInvalidTopDocs      = errors.New("invalid encoded top docs")
	ErrNilQuery            = errors.New("nil query")
	ErrUnknownOccur        = errors.New("unknown clause occur")
	ErrUnsupportedValue    = errors.New("unsupported sort value type")
)

// TooManyClausesError is returned when a BooleanQuery grows past its
// configured clause limit.
type TooManyClausesError struct {
	Max int
}

func (e *TooManyClausesError) Error() string {
	return fmt.Sprintf("maxClauseCount is set to %d", e.Max)
}

func (e *TooManyClausesError) Is(target error) bool {
	return target == ErrTooManyClauses
}

// SortFieldError describes a sort field that cannot be turned into a comparator.
type SortFieldError struct {
	Field string
	Type  SortType
	cause error
}

func (e *SortFieldError) Error() string {
	return fmt.Sprintf("sort field %q (%s): %v", e.Field, e.Type, e.cause)
}

func (e *SortFieldError) Unwrap() error { return e.cause }

// CacheBuildError reports a failed derived-value build for one cache key.
//
// The original parse error (if any) can be accessed via errors.Unwrap.
type CacheBuildError struct {
	Key   CacheKey
	Term  string
	cause error
}

func (e *CacheBuildError) Error() string {
	return fmt.Sprintf("field cache build %s: term %q: %v", e.Key, e.Term, e.cause)
}

func (e *CacheBuildError) Is(target error) bool {
	return target == ErrMalformedTerm
}

func (e *CacheBuildError) Unwrap() error { return e.cause }

func canceledError(cause error) error {
	return fmt.Errorf("%w: %w", ErrSearchCanceled, cause)
}
