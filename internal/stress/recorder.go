package stress

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// tally counts the successful mutations of one key.
type tally struct {
	inserts atomic.Int64
	removes atomic.Int64
}

// Recorder tallies operation outcomes from many goroutines.
type Recorder struct {
	keys *xsync.MapOf[int, *tally]

	inserts  *xsync.Counter
	removes  *xsync.Counter
	finds    *xsync.Counter
	hits     *xsync.Counter
	attempts *xsync.Counter
}

// Totals is a snapshot of a Recorder's global counters.
type Totals struct {
	Attempts int64 // Operations issued
	Inserts  int64 // Successful inserts
	Removes  int64 // Successful removes
	Finds    int64
	Hits     int64 // Finds that returned true
}

func NewRecorder() *Recorder {
	return &Recorder{
		keys:     xsync.NewMapOf[int, *tally](),
		inserts:  xsync.NewCounter(),
		removes:  xsync.NewCounter(),
		finds:    xsync.NewCounter(),
		hits:     xsync.NewCounter(),
		attempts: xsync.NewCounter(),
	}
}

func (r *Recorder) tally(key int) *tally {
	t, _ := r.keys.LoadOrCompute(key, func() *tally { return &tally{} })
	return t
}

// Insert calls set.Insert and records a success.
func (r *Recorder) Insert(set Set, key int) bool {
	r.attempts.Inc()
	ok := set.Insert(key)
	if ok {
		r.tally(key).inserts.Add(1)
		r.inserts.Inc()
	}
	return ok
}

// Remove calls set.Remove and records a success.
func (r *Recorder) Remove(set Set, key int) bool {
	r.attempts.Inc()
	ok := set.Remove(key)
	if ok {
		r.tally(key).removes.Add(1)
		r.removes.Inc()
	}
	return ok
}

// Find calls set.Find and records the outcome.
func (r *Recorder) Find(set Set, key int) bool {
	r.attempts.Inc()
	r.finds.Inc()
	ok := set.Find(key)
	if ok {
		r.hits.Inc()
	}
	return ok
}

// Net returns successful inserts minus successful removes of key.
func (r *Recorder) Net(key int) int64 {
	t, ok := r.keys.Load(key)
	if !ok {
		return 0
	}
	return t.inserts.Load() - t.removes.Load()
}

// Totals returns the global counters.
func (r *Recorder) Totals() Totals {
	return Totals{
		Attempts: r.attempts.Value(),
		Inserts:  r.inserts.Value(),
		Removes:  r.removes.Value(),
		Finds:    r.finds.Value(),
		Hits:     r.hits.Value(),
	}
}

// rangeNet calls fn with the net count of every key that was ever mutated.
func (r *Recorder) rangeNet(fn func(key int, net int64) bool) {
	r.keys.Range(func(key int, t *tally) bool {
		return fn(key, t.inserts.Load()-t.removes.Load())
	})
}
