package stress

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"ktree"
)

// maxListed caps the keys a Report lists individually.
const maxListed = 16

// Inspectable is a Set that can verify its own structure.
type Inspectable interface {
	Set
	Inspect() (ktree.Shape, error)
}

// Report summarizes a verification.
type Report struct {
	Totals Totals
	Shape  ktree.Shape

	Expected       uint64 // Keys the recorded operations leave present
	Actual         uint64 // Keys found in the tree
	ExpectedDigest uint64
	ActualDigest   uint64

	Missing    []uint32 // Expected but not found, at most maxListed
	Unexpected []uint32 // Found but not expected, at most maxListed
	BadNet     []int    // Keys whose net count is neither 0 nor 1
}

// OK reports whether the tree matched the recorded operations.
func (r Report) OK() bool {
	return len(r.BadNet) == 0 && r.Expected == r.Actual && r.ExpectedDigest == r.ActualDigest
}

func (r Report) String() string {
	return fmt.Sprintf("expected=%d actual=%d missing=%v unexpected=%v badNet=%v digest=%016x/%016x",
		r.Expected, r.Actual, r.Missing, r.Unexpected, r.BadNet, r.ExpectedDigest, r.ActualDigest)
}

// Verify checks set against rec once all workloads have finished. Every key
// must have been inserted successfully at most once more than it was
// removed, and exactly the keys with one more insert must be present. The
// tree's structure is checked as well.
func Verify(set Inspectable, rec *Recorder, keySpace int) (Report, error) {
	var report Report
	report.Totals = rec.Totals()

	shape, err := set.Inspect()
	if err != nil {
		return report, err
	}
	report.Shape = shape

	expected := roaring.New()
	rec.rangeNet(func(key int, net int64) bool {
		switch net {
		case 0:
		case 1:
			expected.Add(uint32(key))
		default:
			report.BadNet = append(report.BadNet, key)
		}
		return true
	})

	actual := roaring.New()
	for key := 0; key < keySpace; key++ {
		if set.Find(key) {
			actual.Add(uint32(key))
		}
	}

	report.Expected = expected.GetCardinality()
	report.Actual = actual.GetCardinality()
	report.ExpectedDigest = digest(expected)
	report.ActualDigest = digest(actual)
	report.Missing = sample(roaring.AndNot(expected, actual))
	report.Unexpected = sample(roaring.AndNot(actual, expected))

	if !report.OK() || uint64(shape.Keys) != report.Actual {
		return report, fmt.Errorf("%w: %s", ErrMismatch, report)
	}
	return report, nil
}

// digest hashes the members of b in ascending order.
func digest(b *roaring.Bitmap) uint64 {
	h := xxhash.New()
	var buf [4]byte
	it := b.Iterator()
	for it.HasNext() {
		binary.LittleEndian.PutUint32(buf[:], it.Next())
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func sample(b *roaring.Bitmap) []uint32 {
	if b.IsEmpty() {
		return nil
	}
	out := make([]uint32, 0, maxListed)
	it := b.Iterator()
	for it.HasNext() && len(out) < maxListed {
		out = append(out, it.Next())
	}
	return out
}
