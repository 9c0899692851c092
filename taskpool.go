package refresh

import (
	"runtime"
	"sync"
)

// ParallelFor runs fn(i) for i in [0, n) across at most workers goroutines.
// Used at the frame's fan-out points: PVS row decompression, per-surface
// dlight recomposition, per-slot entity interpolation. Items are handed out
// in fixed contiguous chunks, one chunk per worker, and each index runs
// exactly once; no shared state is partitioned by worker here.
func ParallelFor(workers, n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}
