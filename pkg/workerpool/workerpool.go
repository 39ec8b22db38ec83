// Package workerpool provides concurrent fan-out that preserves input order
// on the consuming side.
package workerpool

import (
	"context"
	"sync"
)

// Result pairs one processed item with its error, if any.
type Result[O any] struct {
	Value O
	Err   error
}

// FetchOrdered runs fn over items with workerCount concurrent workers and
// delivers results on the returned channel strictly in input order. A failed
// item produces a Result with Err set; later items are still processed. The
// channel is closed once every item has been delivered or the context is
// canceled.
func FetchOrdered[I, O any](
	ctx context.Context,
	workerCount int,
	items []I,
	fn func(context.Context, I) (O, error),
) <-chan Result[O] {
	if workerCount < 1 {
		workerCount = 1
	}

	type job struct {
		index int
		item  I
	}

	slots := make([]chan Result[O], len(items))
	for i := range slots {
		slots[i] = make(chan Result[O], 1)
	}

	jobs := make(chan job)
	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{index: i, item: item}:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				value, err := fn(ctx, j.item)
				slots[j.index] <- Result[O]{Value: value, Err: err}
			}
		}()
	}

	out := make(chan Result[O])
	go func() {
		defer close(out)
		defer wg.Wait()
		for _, slot := range slots {
			select {
			case <-ctx.Done():
				return
			case res := <-slot:
				select {
				case <-ctx.Done():
					return
				case out <- res:
				}
			}
		}
	}()

	return out
}
