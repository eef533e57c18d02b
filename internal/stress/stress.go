// Package stress drives concurrent workloads against a ktree and checks the
// outcome against a tally of successful mutations.
package stress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidConfig    = errors.New("stress: invalid config")
	ErrUnexpectedResult = errors.New("stress: unexpected operation result")
	ErrMismatch         = errors.New("stress: tree contents do not match recorded operations")
)

// Set is the part of a tree the workloads drive.
type Set interface {
	Insert(key int) bool
	Remove(key int) bool
	Find(key int) bool
}

// Config describes a workload.
type Config struct {
	Workers      int     // Concurrent goroutines
	KeySpace     int     // Keys are drawn from [0, KeySpace)
	OpsPerWorker int     // Operations per worker per phase (mixed only)
	InsertPct    int     // Share of inserts in the insert phase, the rest are finds
	RemovePct    int     // Share of removes in the remove phase, the rest are finds
	Seed         int64   // Worker w uses Seed+w
	Rate         float64 // Operations per second across all workers, 0 for unlimited
}

// DefaultConfig returns a small workload suitable for tests.
func DefaultConfig() Config {
	return Config{
		Workers:      8,
		KeySpace:     1 << 14,
		OpsPerWorker: 10000,
		InsertPct:    80,
		RemovePct:    80,
		Seed:         1,
	}
}

func (c Config) validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.KeySpace < c.Workers || c.KeySpace > math.MaxUint32:
		return fmt.Errorf("%w: key space must be in [workers, 2^32)", ErrInvalidConfig)
	case c.OpsPerWorker < 0:
		return fmt.Errorf("%w: ops per worker must not be negative", ErrInvalidConfig)
	case c.InsertPct < 0 || c.InsertPct > 100 || c.RemovePct < 0 || c.RemovePct > 100:
		return fmt.Errorf("%w: percentages must be in [0, 100]", ErrInvalidConfig)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) limiter() *rate.Limiter {
	if c.Rate == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.Rate), c.Workers)
}

// RunDisjoint gives worker w the key range [w*S, (w+1)*S) with S =
// KeySpace/Workers. Each worker inserts its whole range, finds every key,
// then removes RemovePct percent of it. Every operation must succeed, so set
// must start out empty.
func RunDisjoint(ctx context.Context, set Set, cfg Config, rec *Recorder) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	span := cfg.KeySpace / cfg.Workers
	lim := cfg.limiter()
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < cfg.Workers; w++ {
		lo, hi := w*span, (w+1)*span
		g.Go(func() error {
			for key := lo; key < hi; key++ {
				if err := lim.Wait(ctx); err != nil {
					return err
				}
				if !rec.Insert(set, key) {
					return fmt.Errorf("%w: insert %d into fresh range failed", ErrUnexpectedResult, key)
				}
			}
			for key := lo; key < hi; key++ {
				if err := lim.Wait(ctx); err != nil {
					return err
				}
				if !rec.Find(set, key) {
					return fmt.Errorf("%w: inserted key %d not found", ErrUnexpectedResult, key)
				}
			}
			for key := lo; key < hi; key++ {
				if (key-lo)%100 >= cfg.RemovePct {
					continue
				}
				if err := lim.Wait(ctx); err != nil {
					return err
				}
				if !rec.Remove(set, key) {
					return fmt.Errorf("%w: remove of present key %d failed", ErrUnexpectedResult, key)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// RunMixed runs two phases over the whole key space. In the first every
// worker issues OpsPerWorker random operations, InsertPct percent of them
// inserts and the rest finds; the second does the same with removes. Workers
// overlap freely, so results are only checked afterwards by Verify.
func RunMixed(ctx context.Context, set Set, cfg Config, rec *Recorder) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	lim := cfg.limiter()
	if err := runPhase(ctx, cfg, lim, cfg.InsertPct, 0, func(key int) { rec.Insert(set, key) }, set, rec); err != nil {
		return err
	}
	return runPhase(ctx, cfg, lim, cfg.RemovePct, int64(cfg.Workers), func(key int) { rec.Remove(set, key) }, set, rec)
}

func runPhase(ctx context.Context, cfg Config, lim *rate.Limiter, pct int, seedOffset int64, mutate func(int), set Set, rec *Recorder) error {
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < cfg.Workers; w++ {
		rng := rand.New(rand.NewSource(cfg.Seed + seedOffset + int64(w)))
		g.Go(func() error {
			for i := 0; i < cfg.OpsPerWorker; i++ {
				if err := lim.Wait(ctx); err != nil {
					return err
				}
				key := rng.Intn(cfg.KeySpace)
				if rng.Intn(100) < pct {
					mutate(key)
				} else {
					rec.Find(set, key)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
