package render

import (
	"runtime"
	"sync"
)

// parallelRows runs fn(y) over y in [0, n) using up to maxWorkers goroutines
// (GOMAXPROCS when maxWorkers is non-positive). Rows are distributed by
// striding to balance uneven workloads.
func parallelRows(n, maxWorkers int, fn func(y int)) {
	if n <= 0 {
		return
	}
	workers := maxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for y := 0; y < n; y++ {
			fn(y)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			for y := start; y < n; y += workers {
				fn(y)
			}
		}(w)
	}
	wg.Wait()
}
