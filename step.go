package ktree

type stepKind uint8

const (
	freedStep stepKind = iota // Returned to the pool, never reachable
	cleanStep
	replaceStep
	pruneStep
	markStep
)

func (k stepKind) String() string {
	switch k {
	case cleanStep:
		return "clean"
	case replaceStep:
		return "replace"
	case pruneStep:
		return "prune"
	case markStep:
		return "mark"
	default:
		return "freed"
	}
}

// step is the descriptor held in an internal node's pending slot.
//
//	clean:   no operation in progress
//	replace: swap p.children[pindex] from l to newChild
//	prune:   installed on gp; splice p out of gp.children[gpindex], dropping l
//	mark:    installed on p; freezes p for the prune it wraps
//
// Every clean step is a fresh allocation. Pending slots are compared by
// identity, so a clean step must never be reused.
type step[K any] struct {
	kind stepKind

	l, p, gp *node[K]
	newChild *node[K] // replace
	ppending *step[K] // prune: p.pending observed by the search
	prune    *step[K] // mark: the enclosing prune
	pindex   int      // replace: index of l in p
	gpindex  int      // prune: index of p in gp
}

func newClean[K any]() *step[K] {
	return &step[K]{kind: cleanStep}
}

func (s *step[K]) isClean() bool {
	return s.kind == cleanStep
}
