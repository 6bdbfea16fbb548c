package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// AnalyzeBatch runs every request concurrently and returns one Result
// per input, in input order regardless of completion order. Each item
// is isolated: a fault in one run becomes that item's Failure and never
// affects siblings. The call returns only when every item has finished.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			// Analyze converts pipeline faults itself; this guards the
			// coordinator's own bookkeeping.
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{OK: false, Reason: fmt.Sprintf("batch item failed: %v", r)}
				}
			}()
			results[i] = o.Analyze(ctx, req)
		}(i, req)
	}
	wg.Wait()

	if o.stats != nil {
		o.stats.RecordBatch(len(reqs))
	}
	return results
}
