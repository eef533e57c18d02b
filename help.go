package ktree

// help completes the operation described by s on behalf of its owner.
func (t *Tree[K]) help(g guard[K], s *step[K]) {
	kind := s.kind
	switch kind {
	case cleanStep:
		return
	case replaceStep:
		t.helpReplace(g, s)
	case pruneStep:
		t.helpPrune(g, s)
	case markStep:
		t.helpMarked(g, s.prune)
	default:
		t.fault("help called on %s step", kind)
	}
	t.metrics.RecordHelp(kind.String())
}

// helpReplace swings p.children[pindex] from l to newChild and unflags p.
// Safe to run any number of times for the same op.
func (t *Tree[K]) helpReplace(g guard[K], op *step[K]) {
	op.p.children[op.pindex].CompareAndSwap(op.l, op.newChild)

	if op.p.pending.CompareAndSwap(op, newClean[K]()) {
		g.Retire(garbage[K]{s: op})
		g.Retire(garbage[K]{n: op.l})
	}
}

// helpPrune tries to freeze p for the prune op installed on gp. It returns
// true once p is frozen and spliced out, false when p changed since the
// search and the prune was backed out of gp.
func (t *Tree[K]) helpPrune(g guard[K], op *step[K]) bool {
	mark := t.pools.step(markStep)
	mark.prune = op
	if op.p.pending.CompareAndSwap(op.ppending, mark) {
		g.Retire(garbage[K]{s: op.ppending})
		t.helpMarked(g, op)
		return true
	}
	t.pools.freeStep(mark)

	cur := op.p.pending.Load()
	if cur.kind == markStep && cur.prune == op {
		t.helpMarked(g, op)
		return true
	}

	// ppending is gone for good, so op can never be marked.
	t.help(g, cur)
	if op.gp.pending.CompareAndSwap(op, newClean[K]()) {
		g.Retire(garbage[K]{s: op})
	}
	return false
}

// helpMarked splices frozen p out of gp, replacing it with its remaining
// non-empty child, and unflags gp.
func (t *Tree[K]) helpMarked(g guard[K], op *step[K]) {
	p := op.p

	var survivor *node[K]
	for i := range p.children {
		c := p.children[i].Load()
		if c != op.l && c.nonEmpty() {
			survivor = c
			break
		}
	}
	if survivor == nil {
		t.fault("pruned %s has no non-empty child besides %s", p, op.l)
	}

	op.gp.children[op.gpindex].CompareAndSwap(p, survivor)

	if op.gp.pending.CompareAndSwap(op, newClean[K]()) {
		g.Retire(garbage[K]{s: op})
		g.Retire(garbage[K]{s: p.pending.Load()})
		for i := range p.children {
			if c := p.children[i].Load(); c != survivor {
				g.Retire(garbage[K]{n: c})
			}
		}
		g.Retire(garbage[K]{n: p})
	}
}
