package ktree

import (
	"errors"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrInvalidBranching    = errors.New("branching factor must be at least 2")
	ErrInvalidParticipants = errors.New("participant slots must be positive")
	ErrInvalidThreshold    = errors.New("reclaim threshold must be positive")
	ErrNilCompare          = errors.New("compare function cannot be nil")

	// ErrInvariant marks an internal-logic fault. Check and Inspect return it
	// wrapped; protocol states that cannot occur panic with it.
	ErrInvariant = errors.New("tree invariant violated")
)
