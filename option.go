package ktree

import (
	"runtime"
)

const (
	// DefaultBranching is the branching factor used when WithBranching is not
	// given. Internal nodes hold DefaultBranching routing keys and one more
	// child, leaves hold up to DefaultBranching keys.
	DefaultBranching = 3

	// DefaultReclaimThreshold is the number of retired objects a participant
	// slot accumulates before releasing the slot triggers a collection.
	DefaultReclaimThreshold = 64
)

// Options configures tree behavior.
type Options struct {
	branching        int     // Routing keys per internal node, and leaf capacity.
	participants     int     // Epoch slots; goroutines beyond this run unslotted.
	reclaimThreshold int     // Retired objects per slot before a collection.
	logger           Logger  // Receives lifecycle and fault messages.
	metrics          Metrics // Receives per-operation counters.
}

// defaultOptions returns safe default configuration.
func defaultOptions() Options {
	return Options{
		branching:        DefaultBranching,
		participants:     4 * runtime.GOMAXPROCS(0),
		reclaimThreshold: DefaultReclaimThreshold,
		logger:           DiscardLogger{},
		metrics:          NoopMetrics{},
	}
}

// Option configures tree options using the functional options pattern.
type Option func(*Options)

// WithBranching sets the branching factor k. Must be at least 2.
//
//goland:noinspection GoUnusedExportedFunction
func WithBranching(k int) Option {
	return func(opts *Options) {
		opts.branching = k
	}
}

// WithLogger sets the logger. *slog.Logger satisfies Logger directly.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		if logger == nil {
			logger = DiscardLogger{}
		}
		opts.logger = logger
	}
}

// WithMetrics sets the metrics collector.
//
//goland:noinspection GoUnusedExportedFunction
func WithMetrics(metrics Metrics) Option {
	return func(opts *Options) {
		if metrics == nil {
			metrics = NoopMetrics{}
		}
		opts.metrics = metrics
	}
}

// WithParticipants sets the number of epoch participant slots. Operations
// that find every slot taken still run, but retire their garbage to the Go
// garbage collector and hold back recycling until they finish. Size this to
// the expected number of concurrently operating goroutines.
//
//goland:noinspection GoUnusedExportedFunction
func WithParticipants(n int) Option {
	return func(opts *Options) {
		opts.participants = n
	}
}

// WithReclaimThreshold sets how many retired nodes and descriptors a
// participant slot holds before they are collected.
//
//goland:noinspection GoUnusedExportedFunction
func WithReclaimThreshold(n int) Option {
	return func(opts *Options) {
		opts.reclaimThreshold = n
	}
}

func (o Options) validate() error {
	if o.branching < 2 {
		return ErrInvalidBranching
	}
	if o.participants < 1 {
		return ErrInvalidParticipants
	}
	if o.reclaimThreshold < 1 {
		return ErrInvalidThreshold
	}
	return nil
}
