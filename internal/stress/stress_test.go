package stress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktree"
)

func newTree(t *testing.T, k int) *ktree.Tree[int] {
	t.Helper()

	tree, err := ktree.New[int](ktree.WithBranching(k), ktree.WithParticipants(64))
	require.NoError(t, err)
	return tree
}

// mapSet is a mutex-guarded reference Set.
type mapSet struct {
	mu   sync.Mutex
	keys map[int]struct{}
}

func newMapSet() *mapSet {
	return &mapSet{keys: make(map[int]struct{})}
}

func (m *mapSet) Insert(key int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false
	}
	m.keys[key] = struct{}{}
	return true
}

func (m *mapSet) Remove(key int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		return false
	}
	delete(m.keys, key)
	return true
}

func (m *mapSet) Find(key int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

func (m *mapSet) Inspect() (ktree.Shape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ktree.Shape{Keys: len(m.keys)}, nil
}

// lossySet drops every insert of one key while reporting success.
type lossySet struct {
	*mapSet
	lost int
}

func (l *lossySet) Insert(key int) bool {
	if key == l.lost {
		return true
	}
	return l.mapSet.Insert(key)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no_workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "key_space_below_workers", mutate: func(c *Config) { c.KeySpace = c.Workers - 1 }},
		{name: "negative_ops", mutate: func(c *Config) { c.OpsPerWorker = -1 }},
		{name: "insert_pct_over_100", mutate: func(c *Config) { c.InsertPct = 101 }},
		{name: "negative_remove_pct", mutate: func(c *Config) { c.RemovePct = -1 }},
		{name: "negative_rate", mutate: func(c *Config) { c.Rate = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := RunMixed(context.Background(), newMapSet(), cfg, NewRecorder())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRunDisjoint(t *testing.T) {
	t.Parallel()

	for _, k := range []int{2, 3, 8} {
		tree := newTree(t, k)
		cfg := DefaultConfig()
		cfg.RemovePct = 50
		rec := NewRecorder()

		require.NoError(t, RunDisjoint(context.Background(), tree, cfg, rec))

		report, err := Verify(tree, rec, cfg.KeySpace)
		require.NoError(t, err, "k=%d", k)
		assert.True(t, report.OK())
		span := cfg.KeySpace / cfg.Workers
		removed := 0
		for offset := 0; offset < span; offset++ {
			if offset%100 < cfg.RemovePct {
				removed++
			}
		}
		assert.Equal(t, uint64(cfg.KeySpace-cfg.Workers*removed), report.Actual)
		assert.Equal(t, int64(cfg.KeySpace), report.Totals.Inserts)
		assert.Equal(t, int64(cfg.KeySpace), report.Totals.Hits)
	}
}

func TestRunDisjointRejectsNonEmptySet(t *testing.T) {
	t.Parallel()

	set := newMapSet()
	set.Insert(0)

	err := RunDisjoint(context.Background(), set, DefaultConfig(), NewRecorder())
	assert.ErrorIs(t, err, ErrUnexpectedResult)
}

func TestRunMixed(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 3)
	cfg := DefaultConfig()
	cfg.KeySpace = 1024
	cfg.OpsPerWorker = 5000
	rec := NewRecorder()

	require.NoError(t, RunMixed(context.Background(), tree, cfg, rec))

	report, err := Verify(tree, rec, cfg.KeySpace)
	require.NoError(t, err)
	assert.Empty(t, report.BadNet)
	assert.Equal(t, report.ExpectedDigest, report.ActualDigest)
	assert.Equal(t, int64(2*cfg.Workers*cfg.OpsPerWorker), report.Totals.Attempts)
	assert.NoError(t, tree.Check())
}

func TestVerifyDetectsLostInsert(t *testing.T) {
	t.Parallel()

	set := &lossySet{mapSet: newMapSet(), lost: 5}
	rec := NewRecorder()
	for key := 0; key < 10; key++ {
		rec.Insert(set, key)
	}

	report, err := Verify(set, rec, 10)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.False(t, report.OK())
	assert.Equal(t, []uint32{5}, report.Missing)
	assert.Empty(t, report.Unexpected)
	assert.Equal(t, uint64(10), report.Expected)
	assert.Equal(t, uint64(9), report.Actual)
}

func TestVerifyDetectsBadNet(t *testing.T) {
	t.Parallel()

	set := &lossySet{mapSet: newMapSet(), lost: 3}
	rec := NewRecorder()
	rec.Insert(set, 3)
	rec.Insert(set, 3)

	report, err := Verify(set, rec, 10)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, []int{3}, report.BadNet)
	assert.Equal(t, int64(2), rec.Net(3))
}

func TestRateLimitedRunHonorsCancel(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Rate = 10

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := RunMixed(ctx, newMapSet(), cfg, NewRecorder())
	assert.Error(t, err)
}
