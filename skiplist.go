package hitlist

import (
	"math/rand"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TERM DICTIONARY: A Skip List Ordered by Term Text
// ═══════════════════════════════════════════════════════════════════════════════
// Each field of a MemorySegment keeps its terms in a skip list so that the
// field cache can walk them in sorted (byte) order and so that
// MemorySegment.TermsFrom can seek straight to a lower bound:
//
// Level 2: HEAD ----------------> [lime] -------------------> NULL
// Level 1: HEAD ----> [apple] --> [lime] --------> [pear] --> NULL
// Level 0: HEAD ----> [apple] --> [lime] -> [mango] -> [pear] -> NULL
//
// Level 0 holds every term; higher levels are express lanes. Search drops a
// level whenever the next key is >= the target, recording the predecessor at
// each level (the "journey") so Insert can splice without a second walk.
// ═══════════════════════════════════════════════════════════════════════════════

const maxHeight = 32 // Maximum tower height

type dictNode struct {
	key      string
	postings *postingList
	tower    [maxHeight]*dictNode
}

type termDict struct {
	head   *dictNode
	height int
	size   int
	rng    *rand.Rand
}

func newTermDict(seed int64) *termDict {
	return &termDict{
		head:   &dictNode{},
		height: 1,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// search returns the node holding key (nil if absent) and the predecessor of
// key at every level.
func (d *termDict) search(key string) (*dictNode, [maxHeight]*dictNode) {
	var journey [maxHeight]*dictNode
	current := d.head

	for level := d.height - 1; level >= 0; level-- {
		for next := current.tower[level]; next != nil && next.key < key; next = current.tower[level] {
			current = next
		}
		journey[level] = current
	}

	next := current.tower[0]
	if next != nil && next.key == key {
		return next, journey
	}
	return nil, journey
}

// get returns the postings for key, or nil.
func (d *termDict) get(key string) *postingList {
	found, _ := d.search(key)
	if found == nil {
		return nil
	}
	return found.postings
}

// getOrInsert returns the postings for key, creating an empty list first if
// the term is new.
func (d *termDict) getOrInsert(key string) *postingList {
	found, journey := d.search(key)
	if found != nil {
		return found.postings
	}

	height := d.randomHeight()
	node := &dictNode{key: key, postings: newPostingList()}
	for level := 0; level < height; level++ {
		predecessor := journey[level]
		if predecessor == nil {
			predecessor = d.head
		}
		node.tower[level] = predecessor.tower[level]
		predecessor.tower[level] = node
	}
	if height > d.height {
		d.height = height
	}
	d.size++
	return node.postings
}

// ceil returns the first node whose key is >= key.
func (d *termDict) ceil(key string) *dictNode {
	found, journey := d.search(key)
	if found != nil {
		return found
	}
	return journey[0].tower[0]
}

func (d *termDict) first() *dictNode {
	return d.head.tower[0]
}

// randomHeight flips coins until tails (50% probability per extra level).
func (d *termDict) randomHeight() int {
	height := 1
	for d.rng.Float64() < 0.5 && height < maxHeight {
		height++
	}
	return height
}

// dictTermsEnum walks level 0 of a term dictionary.
type dictTermsEnum struct {
	next    *dictNode
	current *dictNode
}

func (e *dictTermsEnum) Next() bool {
	if e.next == nil {
		e.current = nil
		return false
	}
	e.current = e.next
	e.next = e.next.tower[0]
	return true
}

func (e *dictTermsEnum) Term() string {
	if e.current == nil {
		return ""
	}
	return e.current.key
}

func (e *dictTermsEnum) Postings() PostingsIterator {
	if e.current == nil {
		return newEmptyPostings()
	}
	return e.current.postings.iterator()
}

func (e *dictTermsEnum) DocFreq() int {
	if e.current == nil {
		return 0
	}
	return e.current.postings.docFreq()
}
