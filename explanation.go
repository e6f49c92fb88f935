package hitlist

import (
	"fmt"
	"strings"
)

// Explanation is a tree describing how a score was computed. Match reports
// whether the document matched at all; a non-matching explanation has a zero
// value and says why in Description.
type Explanation struct {
	Value       float64
	Match       bool
	Description string
	Details     []*Explanation
}

// NewExplanation creates an explanation node.
func NewExplanation(value float64, match bool, description string, details ...*Explanation) *Explanation {
	return &Explanation{
		Value:       value,
		Match:       match,
		Description: description,
		Details:     details,
	}
}

// noMatch is the explanation of a document a query does not match.
func noMatch(description string, details ...*Explanation) *Explanation {
	return NewExplanation(0, false, description, details...)
}

// AddDetail appends a child explanation.
func (e *Explanation) AddDetail(d *Explanation) {
	e.Details = append(e.Details, d)
}

// String renders the tree, one node per line, children indented:
//
//	1.2 = product of:
//	  2.4 = sum of:
//	  0.5 = coord(1/2)
func (e *Explanation) String() string {
	var b strings.Builder
	e.write(&b, 0)
	return b.String()
}

func (e *Explanation) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "%g = %s\n", e.Value, e.Description)
	for _, d := range e.Details {
		d.write(b, depth+1)
	}
}
