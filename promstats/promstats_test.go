package promstats

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktree"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg, "test")

	c.RecordFind(true)
	c.RecordFind(false)
	c.RecordInsert(true, 1)
	c.RecordInsert(true, 3)
	c.RecordRemove(false, 1)
	c.RecordHelp("replace")
	c.RecordSplit()
	c.RecordPrune(false)
	c.RecordRelease("leaf")
	c.RecordRelease("leaf")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("find", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("find", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("remove", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.helps.WithLabelValues("replace")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.splits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.prunes.WithLabelValues("aborted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.releases.WithLabelValues("leaf")))

	expected := `
# HELP test_ktree_splits_total Number of leaf overflow splits
# TYPE test_ktree_splits_total counter
test_ktree_splits_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_ktree_splits_total"))
}

func TestCollectorDuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg, "dup")
	assert.Panics(t, func() { New(reg, "dup") })
}

func TestCollectorWiredIntoTree(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg, "tree")
	tree, err := ktree.New[int](ktree.WithBranching(2), ktree.WithMetrics(c))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, tree.Insert(i))
	}
	assert.False(t, tree.Insert(1))
	assert.True(t, tree.Find(2))

	assert.Equal(t, 3.0, testutil.ToFloat64(c.operations.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("insert", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.splits))
	assert.Equal(t, 1, testutil.CollectAndCount(c.attempts))
}
