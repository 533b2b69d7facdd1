package annotate

import (
	"context"
	"runtime"
	"sync"

	"github.com/inodb/vibe-freq/internal/vcf"
)

// WorkItem is one biallelic record waiting for its frequency lookup.
type WorkItem struct {
	Seq     int
	Variant *vcf.Variant
}

// WorkResult is the lookup outcome of one WorkItem.
type WorkResult struct {
	Seq     int
	Variant *vcf.Variant
	Ann     *Annotation
	Err     error
}

// ParallelAnnotate looks up work items on a pool of workers. Results arrive
// in completion order; use OrderedCollect to consume them by sequence number.
// Workers stop taking items once ctx is done, so the result stream may then
// have gaps. If workers is 0, runtime.NumCPU() is used.
func (a *Annotator) ParallelAnnotate(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			a.work(ctx, items, results)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (a *Annotator) work(ctx context.Context, items <-chan WorkItem, results chan<- WorkResult) {
	for {
		var item WorkItem
		var ok bool
		select {
		case <-ctx.Done():
			return
		case item, ok = <-items:
			if !ok {
				return
			}
		}

		ann, err := a.Annotate(ctx, item.Variant)
		r := WorkResult{Seq: item.Seq, Variant: item.Variant, Ann: ann, Err: err}
		select {
		case results <- r:
		case <-ctx.Done():
			return
		}
	}
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until their turn.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
