// Package ktree implements a non-blocking concurrent k-ary search tree.
//
// A Tree is an ordered set of keys that any number of goroutines may Find,
// Insert and Remove concurrently without locks. Updates are published by
// compare-and-swap on node children and on per-node operation descriptors;
// an operation that finds another one in progress on its path completes it
// before retrying its own, so some operation always makes progress.
//
// Leaves hold up to k keys. Inserting into a full leaf replaces it with an
// internal node of k+1 singleton leaves; removing the last key of a leaf
// whose parent has only one other non-empty child splices the parent out.
// The tree is never rebalanced.
//
// Unlinked nodes and descriptors are recycled through epoch-based
// reclamation: every operation pins the current epoch for its duration, and
// retired objects are reused only once no pinned operation can observe them.
package ktree

import (
	"cmp"
	"fmt"
	"sync/atomic"

	"ktree/internal/epoch"
)

// garbage is a retired node or step.
type garbage[K any] struct {
	n *node[K]
	s *step[K]
}

type guard[K any] = epoch.Guard[garbage[K]]

// Tree is a lock-free ordered set of keys. All methods are safe for
// concurrent use.
type Tree[K any] struct {
	root     *node[K] // Never replaced
	sentinel *node[K] // root's child 0, never pruned

	k       int
	compare func(a, b K) int

	pools        *pools[K]
	epoch        *epoch.Domain[garbage[K]]
	participants int
	warned       atomic.Bool

	logger  Logger
	metrics Metrics
}

// Stats is a point-in-time view of reclamation counters.
type Stats struct {
	Epoch    uint64 // Current reclamation epoch
	Retired  uint64 // Nodes and descriptors unlinked from the tree
	Released uint64 // Retired objects recycled or handed to the garbage collector
	Dropped  uint64 // Retired by operations that ran without a participant slot
	Pending  uint64 // Retired objects not yet released
}

// New creates an empty tree ordered by cmp.Compare.
func New[K cmp.Ordered](opts ...Option) (*Tree[K], error) {
	return NewFunc(cmp.Compare[K], opts...)
}

// NewFunc creates an empty tree ordered by compare, which must return a
// negative number when a < b, zero when a == b and a positive number when
// a > b, and must define a total order.
func NewFunc[K any](compare func(a, b K) int, opts ...Option) (*Tree[K], error) {
	if compare == nil {
		return nil, ErrNilCompare
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	t := &Tree[K]{
		k:            o.branching,
		compare:      compare,
		pools:        newPools[K](o.branching),
		participants: o.participants,
		logger:       o.logger,
		metrics:      o.metrics,
	}

	d, err := epoch.New(o.participants, o.reclaimThreshold, t.recycle)
	if err != nil {
		return nil, err
	}
	t.epoch = d

	// Every key routes root -> sentinel -> child 0, so a leaf always has a
	// parent and a grandparent, and neither of them is ever pruned.
	t.root = t.unbounded()
	t.sentinel = t.unbounded()
	for i := range t.sentinel.children {
		t.sentinel.children[i].Store(t.pools.leaf())
	}
	t.root.children[0].Store(t.sentinel)
	for i := 1; i < len(t.root.children); i++ {
		t.root.children[i].Store(t.pools.leaf())
	}

	t.logger.Info("ktree created",
		"branching", o.branching,
		"participants", o.participants,
		"reclaimThreshold", o.reclaimThreshold)
	return t, nil
}

// unbounded returns an internal node whose bounds are all infinite.
func (t *Tree[K]) unbounded() *node[K] {
	n := t.pools.internal()
	for range t.k {
		n.bounds = append(n.bounds, bound[K]{inf: true})
	}
	return n
}

// K returns the branching factor.
func (t *Tree[K]) K() int {
	return t.k
}

// Find reports whether key is in the tree.
func (t *Tree[K]) Find(key K) bool {
	g := t.pin()
	defer g.Release()

	r := t.search(key)
	found := t.contains(r.l, key)
	t.metrics.RecordFind(found)
	return found
}

// Insert adds key to the tree. It returns false if key was already present.
func (t *Tree[K]) Insert(key K) bool {
	g := t.pin()
	defer g.Release()

	for attempts := 1; ; attempts++ {
		r := t.search(key)
		if t.contains(r.l, key) {
			t.metrics.RecordInsert(false, attempts)
			return false
		}
		if !r.ppending.isClean() {
			t.help(g, r.ppending)
			continue
		}

		split := len(r.l.keys) == t.k
		var newChild *node[K]
		if split {
			newChild = t.split(r.l, key)
		} else {
			newChild = t.withKey(r.l, key)
		}

		op := t.pools.step(replaceStep)
		op.l, op.p, op.newChild, op.pindex = r.l, r.p, newChild, r.pindex

		if r.p.pending.CompareAndSwap(r.ppending, op) {
			g.Retire(garbage[K]{s: r.ppending})
			t.helpReplace(g, op)
			if split {
				t.metrics.RecordSplit()
			}
			t.metrics.RecordInsert(true, attempts)
			return true
		}

		t.discard(newChild)
		t.pools.freeStep(op)
		t.help(g, r.p.pending.Load())
	}
}

// Remove deletes key from the tree. It returns false if key was not present.
func (t *Tree[K]) Remove(key K) bool {
	g := t.pin()
	defer g.Release()

	for attempts := 1; ; attempts++ {
		r := t.search(key)
		idx, found := t.keyIndex(r.l.keys, key)
		if !found {
			t.metrics.RecordRemove(false, attempts)
			return false
		}
		if !r.gppending.isClean() {
			t.help(g, r.gppending)
			continue
		}
		if !r.ppending.isClean() {
			t.help(g, r.ppending)
			continue
		}

		if len(r.l.keys) == 1 && r.p != t.sentinel && r.p.nonEmptyChildren() == 2 {
			op := t.pools.step(pruneStep)
			op.l, op.p, op.gp = r.l, r.p, r.gp
			op.ppending, op.gpindex = r.ppending, r.gpindex

			if !r.gp.pending.CompareAndSwap(r.gppending, op) {
				t.pools.freeStep(op)
				t.help(g, r.gp.pending.Load())
				continue
			}
			g.Retire(garbage[K]{s: r.gppending})

			if t.helpPrune(g, op) {
				t.metrics.RecordPrune(true)
				t.metrics.RecordRemove(true, attempts)
				return true
			}
			t.metrics.RecordPrune(false)
			t.help(g, r.gp.pending.Load())
			continue
		}

		newChild := t.withoutKey(r.l, idx)
		op := t.pools.step(replaceStep)
		op.l, op.p, op.newChild, op.pindex = r.l, r.p, newChild, r.pindex

		if r.p.pending.CompareAndSwap(r.ppending, op) {
			g.Retire(garbage[K]{s: r.ppending})
			t.helpReplace(g, op)
			t.metrics.RecordRemove(true, attempts)
			return true
		}

		t.discard(newChild)
		t.pools.freeStep(op)
		t.help(g, r.p.pending.Load())
	}
}

// Reclaim releases every retired object no running operation can still
// observe. Objects retired by operations still in flight are left for a
// later call. Returns the number of released objects.
func (t *Tree[K]) Reclaim() int {
	released := t.epoch.Reclaim()
	t.logger.Info("ktree reclaimed", "released", released, "pending", t.epoch.Stats().Pending())
	return released
}

// Stats returns the reclamation counters.
func (t *Tree[K]) Stats() Stats {
	s := t.epoch.Stats()
	return Stats{
		Epoch:    s.Epoch,
		Retired:  s.Retired,
		Released: s.Released,
		Dropped:  s.Dropped,
		Pending:  s.Pending(),
	}
}

func (t *Tree[K]) pin() guard[K] {
	g := t.epoch.Pin()
	if !g.Slotted() && t.warned.CompareAndSwap(false, true) {
		t.logger.Warn("ktree participant slots exhausted, recycling suspended while extra operations run",
			"participants", t.participants)
	}
	return g
}

// recycle is the epoch release callback.
func (t *Tree[K]) recycle(x garbage[K]) {
	if x.n != nil {
		kind := x.n.kind
		if kind == freedNode {
			t.fault("node released twice")
		}
		t.pools.freeNode(x.n)
		t.metrics.RecordRelease(kind.String())
		return
	}

	kind := x.s.kind
	switch kind {
	case freedStep:
		t.fault("step released twice")
	case cleanStep:
		// Left to the garbage collector: a prune descriptor still in some
		// slot may compare against it.
	default:
		t.pools.freeStep(x.s)
	}
	t.metrics.RecordRelease(kind.String())
}

// fault logs and panics with ErrInvariant. It is called only for states the
// update protocol cannot produce.
func (t *Tree[K]) fault(format string, args ...any) {
	err := fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
	t.logger.Error("ktree fault", "error", err)
	panic(err)
}
