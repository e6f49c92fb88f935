package hitlist

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dictKeys(d *termDict) []string {
	var keys []string
	for n := d.first(); n != nil; n = n.tower[0] {
		keys = append(keys, n.key)
	}
	return keys
}

func TestTermDict_GetOrInsert_KeepsSortedOrder(t *testing.T) {
	d := newTermDict(1)
	for _, k := range []string{"pear", "apple", "mango", "lime", "banana"} {
		d.getOrInsert(k)
	}

	assert.Equal(t, []string{"apple", "banana", "lime", "mango", "pear"}, dictKeys(d))
	assert.Equal(t, 5, d.size)
}

func TestTermDict_GetOrInsert_Existing(t *testing.T) {
	d := newTermDict(1)
	first := d.getOrInsert("fox")
	second := d.getOrInsert("fox")

	assert.Same(t, first, second)
	assert.Equal(t, 1, d.size)
}

func TestTermDict_Get(t *testing.T) {
	d := newTermDict(1)
	p := d.getOrInsert("fox")

	assert.Same(t, p, d.get("fox"))
	assert.Nil(t, d.get("dog"))
	assert.Nil(t, newTermDict(1).get("fox"))
}

func TestTermDict_Ceil(t *testing.T) {
	d := newTermDict(7)
	for _, k := range []string{"10", "20", "30"} {
		d.getOrInsert(k)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"", "10"},
		{"10", "10"},
		{"15", "20"},
		{"30", "30"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			n := d.ceil(tt.key)
			require.NotNil(t, n)
			assert.Equal(t, tt.want, n.key)
		})
	}

	assert.Nil(t, d.ceil("4"))
}

func TestTermDict_ManyKeys(t *testing.T) {
	d := newTermDict(42)
	rng := rand.New(rand.NewSource(3))
	want := make(map[string]struct{})
	for i := 0; i < 2000; i++ {
		k := fmt.Sprintf("term%05d", rng.Intn(5000))
		want[k] = struct{}{}
		d.getOrInsert(k)
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assert.Equal(t, keys, dictKeys(d))
	assert.LessOrEqual(t, d.height, maxHeight)
	for _, k := range keys {
		assert.NotNil(t, d.get(k), k)
	}
}

func TestDictTermsEnum(t *testing.T) {
	d := newTermDict(1)
	d.getOrInsert("b").add(3)
	d.getOrInsert("a").add(1)
	d.getOrInsert("a").add(2)
	for n := d.first(); n != nil; n = n.tower[0] {
		n.postings.freeze()
	}

	e := &dictTermsEnum{next: d.first()}
	assert.Equal(t, "", e.Term())

	require.True(t, e.Next())
	assert.Equal(t, "a", e.Term())
	assert.Equal(t, 2, e.DocFreq())
	p := e.Postings()
	assert.Equal(t, 1, p.NextDoc())
	assert.Equal(t, 2, p.NextDoc())
	assert.Equal(t, NoMoreDocs, p.NextDoc())

	require.True(t, e.Next())
	assert.Equal(t, "b", e.Term())

	assert.False(t, e.Next())
	assert.Equal(t, NoMoreDocs, e.Postings().NextDoc())
}
