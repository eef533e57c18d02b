package ktree

import (
	"fmt"
)

// Shape describes the structure of a tree at one point in time.
type Shape struct {
	Height      int // Edges from the root to the deepest leaf
	Internal    int // Internal nodes, including the root and its sentinel child
	Leaves      int
	EmptyLeaves int
	Keys        int
}

// Check verifies the structural invariants of the tree. It must only be
// called while no Insert or Remove is running. Violations wrap ErrInvariant.
func (t *Tree[K]) Check() error {
	_, err := t.inspect(nil)
	return err
}

// Inspect verifies the tree like Check and returns its shape.
func (t *Tree[K]) Inspect() (Shape, error) {
	return t.inspect(nil)
}

// inspect walks the whole tree, appending every key in order to keys when it
// is not nil.
func (t *Tree[K]) inspect(keys *[]K) (Shape, error) {
	g := t.pin()
	defer g.Release()

	w := walker[K]{t: t, keys: keys}
	if _, err := w.walk(t.root, nil, bound[K]{inf: true}, 0); err != nil {
		return Shape{}, err
	}
	return w.shape, nil
}

type walker[K any] struct {
	t     *Tree[K]
	shape Shape
	keys  *[]K
}

// walk checks the subtree at n, whose keys must lie in [lo, hi). A nil lo is
// unbounded. Returns the number of keys in the subtree.
func (w *walker[K]) walk(n *node[K], lo *K, hi bound[K], depth int) (int, error) {
	t := w.t
	if n == nil {
		return 0, fmt.Errorf("%w: nil child at depth %d", ErrInvariant, depth)
	}

	switch n.kind {
	case leafNode:
		return w.leaf(n, lo, hi, depth)
	case internalNode:
	default:
		return 0, fmt.Errorf("%w: %s node reachable at depth %d", ErrInvariant, n.kind, depth)
	}

	w.shape.Internal++
	if len(n.bounds) != t.k || len(n.children) != t.k+1 {
		return 0, fmt.Errorf("%w: %s has %d bounds and %d children, want %d and %d",
			ErrInvariant, n, len(n.bounds), len(n.children), t.k, t.k+1)
	}
	if s := n.pending.Load(); s == nil || !s.isClean() {
		return 0, fmt.Errorf("%w: %s has a pending step at rest", ErrInvariant, n)
	}
	for i := 1; i < len(n.bounds); i++ {
		prev, cur := n.bounds[i-1], n.bounds[i]
		if prev.inf && !cur.inf || !prev.inf && !cur.inf && t.compare(prev.key, cur.key) >= 0 {
			return 0, fmt.Errorf("%w: %s bounds out of order", ErrInvariant, n)
		}
	}

	total := 0
	for i := range n.children {
		clo, chi := lo, hi
		if i > 0 && !n.bounds[i-1].inf {
			clo = &n.bounds[i-1].key
		}
		if i < len(n.bounds) {
			chi = n.bounds[i]
		}
		count, err := w.walk(n.children[i].Load(), clo, chi, depth+1)
		if err != nil {
			return 0, err
		}
		if i > 0 && n.bounds[i-1].inf && count > 0 {
			return 0, fmt.Errorf("%w: %s routes keys past an infinite bound", ErrInvariant, n)
		}
		total += count
	}

	if total == 0 && n != t.root && n != t.sentinel {
		return 0, fmt.Errorf("%w: %s has no non-empty descendant leaf", ErrInvariant, n)
	}
	return total, nil
}

func (w *walker[K]) leaf(n *node[K], lo *K, hi bound[K], depth int) (int, error) {
	t := w.t
	w.shape.Leaves++
	w.shape.Height = max(w.shape.Height, depth)
	if len(n.keys) == 0 {
		w.shape.EmptyLeaves++
	}
	if len(n.keys) > t.k {
		return 0, fmt.Errorf("%w: %s holds more than %d keys", ErrInvariant, n, t.k)
	}

	for i, key := range n.keys {
		if i > 0 && t.compare(n.keys[i-1], key) >= 0 {
			return 0, fmt.Errorf("%w: %s keys not strictly increasing", ErrInvariant, n)
		}
		if lo != nil && t.compare(key, *lo) < 0 || !t.below(key, hi) {
			return 0, fmt.Errorf("%w: key %v in %s outside its routing range", ErrInvariant, key, n)
		}
	}

	w.shape.Keys += len(n.keys)
	if w.keys != nil {
		*w.keys = append(*w.keys, n.keys...)
	}
	return len(n.keys), nil
}
