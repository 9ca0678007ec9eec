package parallel

import (
	"sync/atomic"
	"testing"
)

func TestParallelize(t *testing.T) {
	tests := []struct {
		name  string
		items int
	}{
		{name: "zero items", items: 0},
		{name: "single item", items: 1},
		{name: "fewer items than cores", items: 3},
		{name: "many items", items: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var visited int64
			Parallelize(tt.items, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt64(&visited, 1)
				}
			})
			if visited != int64(tt.items) {
				t.Errorf("visited %d items, want %d", visited, tt.items)
			}
		})
	}
}

func TestParallelizeCoversEachIndexOnce(t *testing.T) {
	const items = 500
	counts := make([]int64, items)
	Parallelize(items, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt64(&counts[i], 1)
		}
	})
	for i, c := range counts {
		if c != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, c)
		}
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int64
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt64(&calls, 1)
		if start != 0 || end != 10 {
			t.Errorf("sequential range (%d, %d), want (0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("sequential path made %d calls, want 1", calls)
	}

	var visited int64
	ParallelizeWithThreshold(1000, 100, func(start, end int) {
		atomic.AddInt64(&visited, int64(end-start))
	})
	if visited != 1000 {
		t.Errorf("parallel path visited %d items, want 1000", visited)
	}
}
