package hitlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopDocs_Binary_AllValueTypes(t *testing.T) {
	in := &TopDocs{
		Segment:   NewSegmentID(),
		TotalHits: 42,
		MaxScore:  3.25,
		Docs: []RankedDoc{
			{ScoredDoc: ScoredDoc{Doc: 7, Score: 3.25}, Fields: []any{int32(-5), int64(1 << 40), 7}},
			{ScoredDoc: ScoredDoc{Doc: 2, Score: 1.5}, Fields: []any{float32(2.5), 1.5, "étoile", nil}},
		},
	}

	data, err := in.MarshalBinary()
	require.NoError(t, err)

	var out TopDocs
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, *in, out)
}

func TestTopDocs_Binary_FromSearch(t *testing.T) {
	seg := valueSegment(t, "name", "bob", "ann", "")
	s := newTestSearcher(seg)

	top, err := s.Search(context.Background(), &MatchAllQuery{}, 10,
		SortField{Field: "name", Type: SortString}, Relevance(), IndexOrder())
	require.NoError(t, err)

	data, err := top.MarshalBinary()
	require.NoError(t, err)
	var out TopDocs
	require.NoError(t, out.UnmarshalBinary(data))

	assert.Equal(t, *top, out)
	assert.Equal(t, []int{2, 1, 0}, idsOf(out.Docs))
	assert.Equal(t, []any{nil, 1.0, 2}, out.Docs[0].Fields)
}

func TestTopDocs_MarshalBinary_UnsupportedValue(t *testing.T) {
	in := &TopDocs{Docs: []RankedDoc{{Fields: []any{[]byte("x")}}}}

	_, err := in.MarshalBinary()

	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestTopDocs_UnmarshalBinary_Invalid(t *testing.T) {
	in := &TopDocs{
		Segment:   NewSegmentID(),
		TotalHits: 1,
		MaxScore:  1,
		Docs:      []RankedDoc{{ScoredDoc: ScoredDoc{Doc: 1, Score: 1}, Fields: []any{"name"}}},
	}
	data, err := in.MarshalBinary()
	require.NoError(t, err)

	badMagic := append([]byte(nil), data...)
	badMagic[0] = 'X'
	badVersion := append([]byte(nil), data...)
	badVersion[len(topDocsMagic)] = 99
	badTag := append([]byte(nil), data...)
	// The string tag sits right before its 4-byte length and 4 bytes of text.
	badTag[len(badTag)-9] = 200

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", data[:3]},
		{"truncated doc", data[:len(data)-2]},
		{"bad magic", badMagic},
		{"bad version", badVersion},
		{"unknown tag", badTag},
		{"trailing bytes", append(append([]byte(nil), data...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out TopDocs
			err := out.UnmarshalBinary(tt.data)
			assert.ErrorIs(t, err, ErrInvalidTopDocs)
			assert.Zero(t, out.TotalHits)
		})
	}
}
