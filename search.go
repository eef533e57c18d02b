package ktree

import (
	"sort"
)

// searchThreshold is the node width below which lookups scan linearly.
const searchThreshold = 32

// searchResult is the path context captured by search. Each pending step was
// read before the children of its node.
type searchResult[K any] struct {
	gp, p, l  *node[K]
	gppending *step[K]
	ppending  *step[K]
	gpindex   int
	pindex    int
}

// search descends from the root to the leaf responsible for key.
func (t *Tree[K]) search(key K) searchResult[K] {
	var r searchResult[K]
	r.l = t.root
	for r.l.isInternal() {
		r.gp, r.gppending, r.gpindex = r.p, r.ppending, r.pindex
		r.p = r.l
		r.ppending = r.p.pending.Load()
		r.pindex = t.childIndex(r.p, key)
		r.l = r.p.children[r.pindex].Load()
	}
	if !r.l.isLeaf() || r.gp == nil {
		t.fault("search reached %s under %s", r.l, r.p)
	}
	return r
}

// below reports whether key routes left of b.
func (t *Tree[K]) below(key K, b bound[K]) bool {
	return b.inf || t.compare(key, b.key) < 0
}

// childIndex returns the index of the child of internal node n to follow for
// key: the first bound key is below, or len(bounds) when there is none.
func (t *Tree[K]) childIndex(n *node[K], key K) int {
	bounds := n.bounds
	if len(bounds) < searchThreshold {
		i := 0
		for i < len(bounds) && !t.below(key, bounds[i]) {
			i++
		}
		return i
	}

	return sort.Search(len(bounds), func(i int) bool {
		return t.below(key, bounds[i])
	})
}

// keyIndex returns the position of key in the sorted keys, or the position it
// would be inserted at, and whether it is present.
func (t *Tree[K]) keyIndex(keys []K, key K) (int, bool) {
	if len(keys) < searchThreshold {
		for i := range keys {
			c := t.compare(key, keys[i])
			if c == 0 {
				return i, true
			}
			if c < 0 {
				return i, false
			}
		}
		return len(keys), false
	}

	idx := sort.Search(len(keys), func(i int) bool {
		return t.compare(keys[i], key) >= 0
	})
	return idx, idx < len(keys) && t.compare(keys[idx], key) == 0
}

func (t *Tree[K]) contains(l *node[K], key K) bool {
	_, found := t.keyIndex(l.keys, key)
	return found
}
