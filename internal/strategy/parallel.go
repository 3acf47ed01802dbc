package strategy

import (
	"context"
	"runtime"
	"sync"
)

// forRange splits [0, total) into one contiguous span per worker and runs
// fn on each span concurrently, joining before it returns. Spans are
// disjoint, so workers never write the same output cell. Cancellation is
// checked once per span; a span that has started runs to completion.
func forRange(ctx context.Context, total, workers int, fn func(start, end int)) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(0, total)
		return nil
	}

	span := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < total; start += span {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		end := start + span
		if end > total {
			end = total
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
	return ctx.Err()
}
