// Package epoch implements epoch-based reclamation for lock-free structures.
//
// Participants pin the global epoch into a fixed-size slot array before they
// dereference shared pointers, and unpin when done. Objects unlinked from a
// shared structure are retired into the retiring participant's slot, tagged
// with the epoch at which they were retired. A retired object is released
// once every participant that could still hold a reference has unpinned.
package epoch

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

var (
	ErrInvalidSlots     = errors.New("epoch: slot count must be positive")
	ErrInvalidThreshold = errors.New("epoch: reclaim threshold must be positive")
)

// Domain tracks pinned participants and the objects they retired.
// The zero value is not usable, create one with New.
type Domain[T any] struct {
	global    atomic.Uint64 // Monotonic epoch, starts at 1 (0 marks a free slot)
	slots     []slot[T]     // Fixed-size participant slots
	hint      atomic.Uint32 // Rotating start index for slot claims
	overflow  atomic.Int64  // Participants running without a slot
	threshold int           // Retire list length that triggers a collection
	release   func(T)       // Called once per retired object when it is safe

	retired  atomic.Uint64
	released atomic.Uint64
	dropped  atomic.Uint64
}

type slot[T any] struct {
	pinned  atomic.Uint64 // Epoch observed by the holder (0 = empty slot)
	pending []entry[T]    // Owned by whoever holds the slot
	_       cpu.CacheLinePad
}

type entry[T any] struct {
	epoch uint64
	value T
}

// Stats is a point-in-time view of the domain counters.
type Stats struct {
	Epoch    uint64 // Current global epoch
	Retired  uint64 // Objects handed to Retire
	Released uint64 // Objects passed to the release callback
	Dropped  uint64 // Objects retired by unslotted guards, left to the garbage collector
}

// Pending returns the number of retired objects still waiting for release.
func (s Stats) Pending() uint64 {
	return s.Retired - s.Released - s.Dropped
}

// New creates a domain with the given number of participant slots. Retire
// lists are collected once they hold at least threshold entries. release is
// invoked for every retired object once no participant can observe it.
func New[T any](slots, threshold int, release func(T)) (*Domain[T], error) {
	if slots <= 0 {
		return nil, ErrInvalidSlots
	}
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	if release == nil {
		release = func(T) {}
	}

	d := &Domain[T]{
		slots:     make([]slot[T], slots),
		threshold: threshold,
		release:   release,
	}
	d.global.Store(1)
	return d, nil
}

// Guard is a pinned participant. Every Guard returned by Pin must be
// released exactly once.
type Guard[T any] struct {
	d    *Domain[T]
	slot int // -1 when no slot was free
}

// Pin registers the caller as a participant at the current epoch.
//
// When every slot is taken the guard runs unslotted: collections are
// suspended until it is released, and the objects it retires are left to the
// garbage collector instead of being released.
func (d *Domain[T]) Pin() Guard[T] {
	e := d.global.Load()
	n := uint32(len(d.slots))
	start := d.hint.Add(1) % n

	for i := uint32(0); i < n; i++ {
		idx := (start + i) % n
		if d.slots[idx].pinned.CompareAndSwap(0, e) {
			return Guard[T]{d: d, slot: int(idx)}
		}
	}

	d.overflow.Add(1)
	return Guard[T]{d: d, slot: -1}
}

// Slotted reports whether the guard holds a participant slot.
func (g Guard[T]) Slotted() bool {
	return g.slot >= 0
}

// Retire hands v to the domain. The caller must already have made v
// unreachable for participants that pin after this call.
func (g Guard[T]) Retire(v T) {
	d := g.d
	d.retired.Add(1)

	if g.slot < 0 {
		d.dropped.Add(1)
		return
	}

	s := &d.slots[g.slot]
	s.pending = append(s.pending, entry[T]{epoch: d.global.Load(), value: v})
}

// Release unpins the guard, collecting its slot's retire list first when it
// has grown past the threshold.
func (g Guard[T]) Release() {
	d := g.d
	if g.slot < 0 {
		d.overflow.Add(-1)
		return
	}

	s := &d.slots[g.slot]
	if len(s.pending) >= d.threshold {
		d.collect(g.slot)
	}
	s.pinned.Store(0)
}

// Reclaim collects the retire list of every idle slot. Slots held by active
// participants are skipped and collected when their holder releases them.
// Returns the number of released objects.
func (d *Domain[T]) Reclaim() int {
	total := 0
	for i := range d.slots {
		s := &d.slots[i]
		if !s.pinned.CompareAndSwap(0, d.global.Load()) {
			continue
		}
		if len(s.pending) > 0 {
			total += d.collect(i)
		}
		s.pinned.Store(0)
	}
	return total
}

// Stats returns the current counters.
func (d *Domain[T]) Stats() Stats {
	return Stats{
		Epoch:    d.global.Load(),
		Retired:  d.retired.Load(),
		Released: d.released.Load(),
		Dropped:  d.dropped.Load(),
	}
}

// collect releases every entry of slot self retired before the oldest epoch
// still pinned by another participant. The caller must hold slot self.
func (d *Domain[T]) collect(self int) int {
	// Advance first: anyone pinning after the scan below missed this slot
	// read, so everything it can reach is retired at the new epoch or later.
	minEpoch := d.global.Add(1)

	for i := range d.slots {
		if i == self {
			continue
		}
		if e := d.slots[i].pinned.Load(); e != 0 && e < minEpoch {
			minEpoch = e
		}
	}

	// Unslotted participants have no epoch to compare against
	if d.overflow.Load() > 0 {
		return 0
	}

	s := &d.slots[self]
	kept := s.pending[:0]
	released := 0
	for _, ent := range s.pending {
		if ent.epoch < minEpoch {
			d.release(ent.value)
			released++
			continue
		}
		kept = append(kept, ent)
	}

	// Clear the tail so released values are not kept alive by the backing array
	var zero entry[T]
	for i := len(kept); i < len(s.pending); i++ {
		s.pending[i] = zero
	}
	s.pending = kept

	d.released.Add(uint64(released))
	return released
}
