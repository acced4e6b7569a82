// Package parallel provides the worker-pool helpers shared by CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

var (
	mu      sync.RWMutex
	workers = runtime.NumCPU()
)

// SetWorkers sets the number of worker goroutines used by For.
// Values below 1 reset to the CPU count.
func SetWorkers(n int) {
	mu.Lock()
	defer mu.Unlock()
	if n < 1 {
		n = runtime.NumCPU()
	}
	workers = n
}

// Workers returns the current worker count.
func Workers() int {
	mu.RLock()
	defer mu.RUnlock()
	return workers
}

// minChunk is the smallest per-goroutine slice worth the scheduling cost.
const minChunk = 64

// For executes f(i) for i in [0, n), splitting the range across workers.
// Small ranges run sequentially.
func For(n int, f func(i int)) {
	w := Workers()
	if w <= 1 || n < minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + w - 1) / w
	if chunk < minChunk {
		chunk = minChunk
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// For2D executes f(i, j) over the [0,rows)x[0,cols) grid, parallelized
// over the flattened index. Used by matmul and conv kernels.
func For2D(rows, cols int, f func(i, j int)) {
	For(rows*cols, func(k int) {
		f(k/cols, k%cols)
	})
}
