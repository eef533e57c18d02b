package ktree

import (
	"sync/atomic"
)

// Metrics receives operational counters from a tree. Implementations must be
// safe for concurrent use and must not block: every method is called from
// inside lock-free operations.
//
// See package promstats for a Prometheus implementation.
type Metrics interface {
	// RecordFind is called after each Find.
	RecordFind(found bool)

	// RecordInsert is called after each Insert. attempts counts the searches
	// the operation needed, 1 when it never had to retry.
	RecordInsert(inserted bool, attempts int)

	// RecordRemove is called after each Remove.
	RecordRemove(removed bool, attempts int)

	// RecordHelp is called whenever an operation completes a pending
	// descriptor it found on its path. kind is "replace", "prune" or "mark".
	RecordHelp(kind string)

	// RecordSplit is called when an insert overflowed a full leaf.
	RecordSplit()

	// RecordPrune is called by a remove that installed a prune descriptor.
	// completed is false when the prune was aborted and the remove retried.
	RecordPrune(completed bool)

	// RecordRelease is called for every retired object handed back for
	// reuse. kind is "leaf", "internal", "clean", "replace", "prune" or "mark".
	RecordRelease(kind string)
}

// NoopMetrics is a no-op implementation of Metrics.
type NoopMetrics struct{}

func (NoopMetrics) RecordFind(bool)        {}
func (NoopMetrics) RecordInsert(bool, int) {}
func (NoopMetrics) RecordRemove(bool, int) {}
func (NoopMetrics) RecordHelp(string)      {}
func (NoopMetrics) RecordSplit()           {}
func (NoopMetrics) RecordPrune(bool)       {}
func (NoopMetrics) RecordRelease(string)   {}

// BasicMetrics provides simple in-memory counters.
type BasicMetrics struct {
	Finds         atomic.Int64
	FindHits      atomic.Int64
	Inserts       atomic.Int64
	InsertsFailed atomic.Int64
	Removes       atomic.Int64
	RemovesFailed atomic.Int64
	Retries       atomic.Int64
	Helps         atomic.Int64
	Splits        atomic.Int64
	Prunes        atomic.Int64
	PruneAborts   atomic.Int64
	Releases      atomic.Int64
}

// RecordFind implements Metrics.
func (b *BasicMetrics) RecordFind(found bool) {
	b.Finds.Add(1)
	if found {
		b.FindHits.Add(1)
	}
}

// RecordInsert implements Metrics.
func (b *BasicMetrics) RecordInsert(inserted bool, attempts int) {
	b.Inserts.Add(1)
	if !inserted {
		b.InsertsFailed.Add(1)
	}
	b.Retries.Add(int64(attempts - 1))
}

// RecordRemove implements Metrics.
func (b *BasicMetrics) RecordRemove(removed bool, attempts int) {
	b.Removes.Add(1)
	if !removed {
		b.RemovesFailed.Add(1)
	}
	b.Retries.Add(int64(attempts - 1))
}

// RecordHelp implements Metrics.
func (b *BasicMetrics) RecordHelp(string) {
	b.Helps.Add(1)
}

// RecordSplit implements Metrics.
func (b *BasicMetrics) RecordSplit() {
	b.Splits.Add(1)
}

// RecordPrune implements Metrics.
func (b *BasicMetrics) RecordPrune(completed bool) {
	if completed {
		b.Prunes.Add(1)
	} else {
		b.PruneAborts.Add(1)
	}
}

// RecordRelease implements Metrics.
func (b *BasicMetrics) RecordRelease(string) {
	b.Releases.Add(1)
}

// BasicMetricsStats is a snapshot of BasicMetrics.
type BasicMetricsStats struct {
	Finds         int64
	FindHits      int64
	Inserts       int64
	InsertsFailed int64
	Removes       int64
	RemovesFailed int64
	Retries       int64
	Helps         int64
	Splits        int64
	Prunes        int64
	PruneAborts   int64
	Releases      int64
}

// Snapshot returns the current counter values.
func (b *BasicMetrics) Snapshot() BasicMetricsStats {
	return BasicMetricsStats{
		Finds:         b.Finds.Load(),
		FindHits:      b.FindHits.Load(),
		Inserts:       b.Inserts.Load(),
		InsertsFailed: b.InsertsFailed.Load(),
		Removes:       b.Removes.Load(),
		RemovesFailed: b.RemovesFailed.Load(),
		Retries:       b.Retries.Load(),
		Helps:         b.Helps.Load(),
		Splits:        b.Splits.Load(),
		Prunes:        b.Prunes.Load(),
		PruneAborts:   b.PruneAborts.Load(),
		Releases:      b.Releases.Load(),
	}
}
