package ktree

import (
	"slices"
)

// split builds the replacement for full leaf l when key is inserted: an
// internal node whose k+1 children are singleton leaves holding the k+1
// sorted keys. Bound i is the key of child i+1, so the smallest key routes
// to child 0.
func (t *Tree[K]) split(l *node[K], key K) *node[K] {
	merged := make([]K, 0, t.k+1)
	merged = append(merged, l.keys...)
	merged = append(merged, key)
	slices.SortFunc(merged, t.compare)

	n := t.pools.internal()
	for i, k := range merged {
		if i > 0 {
			n.bounds = append(n.bounds, bound[K]{key: k})
		}
		leaf := t.pools.leaf()
		leaf.keys = append(leaf.keys, k)
		n.children[i].Store(leaf)
	}
	return n
}

// withKey returns a copy of leaf l with key added in order.
func (t *Tree[K]) withKey(l *node[K], key K) *node[K] {
	idx, _ := t.keyIndex(l.keys, key)
	n := t.pools.leaf()
	n.keys = append(n.keys, l.keys[:idx]...)
	n.keys = append(n.keys, key)
	n.keys = append(n.keys, l.keys[idx:]...)
	return n
}

// withoutKey returns a copy of leaf l with the key at idx removed.
func (t *Tree[K]) withoutKey(l *node[K], idx int) *node[K] {
	n := t.pools.leaf()
	n.keys = append(n.keys, l.keys[:idx]...)
	n.keys = append(n.keys, l.keys[idx+1:]...)
	return n
}

// discard returns a node that was never published to the pools, including
// the leaves of an unpublished split.
func (t *Tree[K]) discard(n *node[K]) {
	if n.isInternal() {
		for i := range n.children {
			if c := n.children[i].Load(); c != nil {
				t.pools.freeNode(c)
			}
		}
	}
	t.pools.freeNode(n)
}
