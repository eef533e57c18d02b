package ktree

import (
	"fmt"
	"strings"
	"sync/atomic"
)

type nodeKind uint8

const (
	freedNode nodeKind = iota // Returned to the pool, never reachable
	leafNode
	internalNode
)

func (k nodeKind) String() string {
	switch k {
	case leafNode:
		return "leaf"
	case internalNode:
		return "internal"
	default:
		return "freed"
	}
}

// bound is an internal routing key. An infinite bound sorts after every key
// and marks a routing slot with no real upper bound.
type bound[K any] struct {
	key K
	inf bool
}

// node is either a leaf or an internal node.
//
// A leaf holds up to k sorted keys and is immutable once published. An
// internal node holds exactly k bounds and k+1 children; only its children
// and its pending step change after publication, and only by CAS.
type node[K any] struct {
	kind nodeKind

	// Leaf
	keys []K

	// Internal
	bounds   []bound[K]
	children []atomic.Pointer[node[K]]
	pending  atomic.Pointer[step[K]]
}

func (n *node[K]) isLeaf() bool {
	return n.kind == leafNode
}

func (n *node[K]) isInternal() bool {
	return n.kind == internalNode
}

// nonEmpty reports whether n counts as a live child when choosing a prune
// survivor: a leaf holding keys, or any internal node. Internal nodes below
// the sentinels always keep at least two non-empty children.
func (n *node[K]) nonEmpty() bool {
	return n.kind == internalNode || (n.kind == leafNode && len(n.keys) > 0)
}

// nonEmptyChildren counts the non-empty children of internal node n. The
// result is only stable while n.pending holds the Clean step observed
// before the call.
func (n *node[K]) nonEmptyChildren() int {
	count := 0
	for i := range n.children {
		if n.children[i].Load().nonEmpty() {
			count++
		}
	}
	return count
}

func (n *node[K]) String() string {
	switch n.kind {
	case leafNode:
		return fmt.Sprintf("leaf%v", n.keys)
	case internalNode:
		var sb strings.Builder
		sb.WriteString("internal[")
		for i, b := range n.bounds {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if b.inf {
				sb.WriteString("inf")
			} else {
				fmt.Fprint(&sb, b.key)
			}
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		return "freed"
	}
}
