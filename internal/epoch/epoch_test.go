package epoch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	id       int
	released atomic.Bool
}

func newDomain(t *testing.T, slots, threshold int) (*Domain[*object], *atomic.Int64) {
	t.Helper()

	var count atomic.Int64
	d, err := New(slots, threshold, func(o *object) {
		o.released.Store(true)
		count.Add(1)
	})
	require.NoError(t, err)
	return d, &count
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		slots     int
		threshold int
		wantErr   error
	}{
		{name: "zero_slots", slots: 0, threshold: 1, wantErr: ErrInvalidSlots},
		{name: "negative_slots", slots: -3, threshold: 1, wantErr: ErrInvalidSlots},
		{name: "zero_threshold", slots: 4, threshold: 0, wantErr: ErrInvalidThreshold},
		{name: "valid", slots: 4, threshold: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New[int](tt.slots, tt.threshold, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(1), d.Stats().Epoch)
		})
	}
}

func TestRetireBelowThresholdWaitsForReclaim(t *testing.T) {
	t.Parallel()

	d, count := newDomain(t, 4, 16)

	g := d.Pin()
	require.True(t, g.Slotted())
	obj := &object{id: 1}
	g.Retire(obj)
	g.Release()

	assert.False(t, obj.released.Load(), "below threshold nothing is collected on release")
	assert.Equal(t, uint64(1), d.Stats().Pending())

	assert.Equal(t, 1, d.Reclaim())
	assert.True(t, obj.released.Load())
	assert.Equal(t, int64(1), count.Load())
	assert.Equal(t, uint64(0), d.Stats().Pending())
}

func TestPinnedParticipantBlocksRelease(t *testing.T) {
	t.Parallel()

	d, _ := newDomain(t, 4, 16)

	reader := d.Pin()

	writer := d.Pin()
	obj := &object{id: 7}
	writer.Retire(obj)
	writer.Release()

	assert.Equal(t, 0, d.Reclaim(), "reader pinned before the retire may still hold the object")
	assert.False(t, obj.released.Load())

	reader.Release()

	assert.Equal(t, 1, d.Reclaim())
	assert.True(t, obj.released.Load())
}

func TestLaterPinDoesNotBlockEarlierRetire(t *testing.T) {
	t.Parallel()

	d, _ := newDomain(t, 4, 1)

	writer := d.Pin()
	obj := &object{id: 3}
	writer.Retire(obj)

	// A collection elsewhere advances the epoch while writer stays pinned
	other := d.Pin()
	dummy := &object{id: 4}
	other.Retire(dummy)
	other.Release()
	assert.False(t, dummy.released.Load(), "writer pinned at the retire epoch")

	late := d.Pin()
	defer late.Release()

	writer.Release()
	assert.True(t, obj.released.Load(), "a pin taken after the retire epoch must not hold it back")
	assert.Equal(t, uint64(1), d.Stats().Released)
}

func TestThresholdTriggersCollectionOnRelease(t *testing.T) {
	t.Parallel()

	d, count := newDomain(t, 2, 2)

	g := d.Pin()
	a, b := &object{id: 1}, &object{id: 2}
	g.Retire(a)
	g.Retire(b)
	g.Release()

	assert.True(t, a.released.Load())
	assert.True(t, b.released.Load())
	assert.Equal(t, int64(2), count.Load())
}

func TestUnslottedGuardSuspendsCollection(t *testing.T) {
	t.Parallel()

	d, _ := newDomain(t, 1, 1)

	slotted := d.Pin()
	require.True(t, slotted.Slotted())

	unslotted := d.Pin()
	require.False(t, unslotted.Slotted())

	dropped := &object{id: 1}
	unslotted.Retire(dropped)

	kept := &object{id: 2}
	slotted.Retire(kept)
	slotted.Release()

	assert.False(t, kept.released.Load(), "collection must wait for unslotted participants")

	unslotted.Release()
	assert.Equal(t, 1, d.Reclaim())
	assert.True(t, kept.released.Load())
	assert.False(t, dropped.released.Load(), "unslotted retirees go to the garbage collector")

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.Retired)
	assert.Equal(t, uint64(1), stats.Released)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(0), stats.Pending())
}

func TestConcurrentSwapNeverObservesReleased(t *testing.T) {
	t.Parallel()

	d, _ := newDomain(t, 8, 4)

	var shared atomic.Pointer[object]
	shared.Store(&object{})

	numGoroutines := 16
	opsPerGoroutine := 2000
	var violations atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < opsPerGoroutine; j++ {
				g := d.Pin()

				cur := shared.Load()
				if cur.released.Load() {
					violations.Add(1)
				}

				next := &object{id: id*opsPerGoroutine + j}
				if shared.CompareAndSwap(cur, next) {
					g.Retire(cur)
				}

				// Still pinned: whatever we loaded must not have been released
				if cur.released.Load() {
					violations.Add(1)
				}
				g.Release()
			}
		}(i)
	}

	wg.Wait()
	d.Reclaim()

	assert.Equal(t, int64(0), violations.Load())
	stats := d.Stats()
	assert.Equal(t, stats.Retired, stats.Released+stats.Dropped)
}
