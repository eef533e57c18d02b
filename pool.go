package ktree

import (
	"sync"
	"sync/atomic"
)

// pools recycles nodes and non-clean steps released by the epoch domain.
// Leaves are sized for k keys, internal nodes for k bounds and k+1 children.
type pools[K any] struct {
	leaves    sync.Pool
	internals sync.Pool
	steps     sync.Pool
}

func newPools[K any](k int) *pools[K] {
	p := &pools[K]{}
	p.leaves.New = func() any {
		return &node[K]{keys: make([]K, 0, k)}
	}
	p.internals.New = func() any {
		return &node[K]{
			bounds:   make([]bound[K], 0, k),
			children: make([]atomic.Pointer[node[K]], k+1),
		}
	}
	p.steps.New = func() any {
		return &step[K]{}
	}
	return p
}

// leaf returns an empty leaf.
func (p *pools[K]) leaf() *node[K] {
	n := p.leaves.Get().(*node[K])
	n.kind = leafNode
	n.keys = n.keys[:0]
	return n
}

// internal returns an internal node with no bounds, nil children and a fresh
// Clean pending step.
func (p *pools[K]) internal() *node[K] {
	n := p.internals.Get().(*node[K])
	n.kind = internalNode
	n.bounds = n.bounds[:0]
	n.pending.Store(newClean[K]())
	return n
}

func (p *pools[K]) step(kind stepKind) *step[K] {
	s := p.steps.Get().(*step[K])
	s.kind = kind
	return s
}

// freeNode returns n to its pool. Keys and children are cleared so the pool
// does not keep them alive.
func (p *pools[K]) freeNode(n *node[K]) {
	switch n.kind {
	case leafNode:
		clear(n.keys)
		n.keys = n.keys[:0]
		n.kind = freedNode
		p.leaves.Put(n)
	case internalNode:
		clear(n.bounds)
		n.bounds = n.bounds[:0]
		for i := range n.children {
			n.children[i].Store(nil)
		}
		n.pending.Store(nil)
		n.kind = freedNode
		p.internals.Put(n)
	}
}

func (p *pools[K]) freeStep(s *step[K]) {
	*s = step[K]{}
	p.steps.Put(s)
}
