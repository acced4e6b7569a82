package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversRange(t *testing.T) {
	const n = 1000
	var count atomic.Int64
	seen := make([]atomic.Bool, n)

	For(n, func(i int) {
		count.Add(1)
		seen[i].Store(true)
	})

	if count.Load() != n {
		t.Errorf("count = %d, want %d", count.Load(), n)
	}
	for i := range seen {
		if !seen[i].Load() {
			t.Fatalf("index %d not visited", i)
		}
	}
}

func TestForSmallRangeSequential(t *testing.T) {
	sum := 0
	For(10, func(i int) { sum += i }) // below minChunk, runs on caller goroutine
	if sum != 45 {
		t.Errorf("sum = %d, want 45", sum)
	}
}

func TestFor2D(t *testing.T) {
	var count atomic.Int64
	For2D(16, 16, func(i, j int) {
		if i < 0 || i >= 16 || j < 0 || j >= 16 {
			t.Errorf("out of range: (%d, %d)", i, j)
		}
		count.Add(1)
	})
	if count.Load() != 256 {
		t.Errorf("count = %d, want 256", count.Load())
	}
}

func TestSetWorkers(t *testing.T) {
	old := Workers()
	defer SetWorkers(old)

	SetWorkers(2)
	if Workers() != 2 {
		t.Errorf("Workers() = %d, want 2", Workers())
	}
	SetWorkers(0) // resets to CPU count
	if Workers() < 1 {
		t.Error("Workers() < 1 after reset")
	}
}
