package ktree

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
)

func BenchmarkInsert(b *testing.B) {
	for _, k := range []int{2, 4, 16, 64} {
		b.Run(fmt.Sprintf("k%d", k), func(b *testing.B) {
			tree, err := New[int](WithBranching(k))
			if err != nil {
				b.Fatalf("Failed to create tree: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				tree.Insert(i)
			}
		})
	}
}

func BenchmarkFind(b *testing.B) {
	tree, err := New[int](WithBranching(8))
	if err != nil {
		b.Fatalf("Failed to create tree: %v", err)
	}

	// Pre-populate with 100k keys in random order
	numKeys := 100000
	for _, key := range rand.New(rand.NewSource(1)).Perm(numKeys) {
		tree.Insert(key)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !tree.Find((i * 7) % numKeys) {
			b.Errorf("key %d not found", (i*7)%numKeys)
		}
	}
}

func BenchmarkParallelFind(b *testing.B) {
	tree, err := New[int](WithBranching(8))
	if err != nil {
		b.Fatalf("Failed to create tree: %v", err)
	}

	numKeys := 100000
	for _, key := range rand.New(rand.NewSource(1)).Perm(numKeys) {
		tree.Insert(key)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			tree.Find((i * 7) % numKeys)
			i++
		}
	})
}

func BenchmarkParallelMixed(b *testing.B) {
	for _, k := range []int{4, 16} {
		b.Run(fmt.Sprintf("k%d", k), func(b *testing.B) {
			tree, err := New[int](WithBranching(k))
			if err != nil {
				b.Fatalf("Failed to create tree: %v", err)
			}

			keySpace := 1 << 16
			var seed atomic.Int64

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				rng := rand.New(rand.NewSource(seed.Add(1)))
				for pb.Next() {
					key := rng.Intn(keySpace)
					switch rng.Intn(4) {
					case 0:
						tree.Insert(key)
					case 1:
						tree.Remove(key)
					default:
						tree.Find(key)
					}
				}
			})
		})
	}
}
