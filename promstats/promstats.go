// Package promstats exports ktree metrics to Prometheus.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ktree"
)

// Collector implements ktree.Metrics on Prometheus counters and histograms.
type Collector struct {
	operations *prometheus.CounterVec
	attempts   *prometheus.HistogramVec
	helps      *prometheus.CounterVec
	splits     prometheus.Counter
	prunes     *prometheus.CounterVec
	releases   *prometheus.CounterVec
}

var _ ktree.Metrics = (*Collector)(nil)

// New registers the ktree metrics with reg under the given namespace.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ktree_operations_total",
			Help:      "Number of tree operations by kind and outcome",
		}, []string{"op", "result"}),
		attempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ktree_operation_attempts",
			Help:      "Searches needed per insert or remove",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		}, []string{"op"}),
		helps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ktree_helps_total",
			Help:      "Number of pending descriptors completed on behalf of other operations",
		}, []string{"kind"}),
		splits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ktree_splits_total",
			Help:      "Number of leaf overflow splits",
		}),
		prunes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ktree_prunes_total",
			Help:      "Number of pruning deletions by outcome",
		}, []string{"result"}),
		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ktree_released_total",
			Help:      "Number of retired nodes and descriptors released for reuse",
		}, []string{"kind"}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "miss"
}

// RecordFind implements ktree.Metrics.
func (c *Collector) RecordFind(found bool) {
	c.operations.WithLabelValues("find", outcome(found)).Inc()
}

// RecordInsert implements ktree.Metrics.
func (c *Collector) RecordInsert(inserted bool, attempts int) {
	c.operations.WithLabelValues("insert", outcome(inserted)).Inc()
	c.attempts.WithLabelValues("insert").Observe(float64(attempts))
}

// RecordRemove implements ktree.Metrics.
func (c *Collector) RecordRemove(removed bool, attempts int) {
	c.operations.WithLabelValues("remove", outcome(removed)).Inc()
	c.attempts.WithLabelValues("remove").Observe(float64(attempts))
}

// RecordHelp implements ktree.Metrics.
func (c *Collector) RecordHelp(kind string) {
	c.helps.WithLabelValues(kind).Inc()
}

// RecordSplit implements ktree.Metrics.
func (c *Collector) RecordSplit() {
	c.splits.Inc()
}

// RecordPrune implements ktree.Metrics.
func (c *Collector) RecordPrune(completed bool) {
	result := "completed"
	if !completed {
		result = "aborted"
	}
	c.prunes.WithLabelValues(result).Inc()
}

// RecordRelease implements ktree.Metrics.
func (c *Collector) RecordRelease(kind string) {
	c.releases.WithLabelValues(kind).Inc()
}
