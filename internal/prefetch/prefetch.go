/*
Package prefetch warms the cache for many references at once.

Responsibilities:
- Fan a reference list out over a bounded pool of workers, each running a
  full GetOrFetch.
- Report one Outcome per reference, in input order, regardless of which
  worker finished first.
- Never abort the batch: a failing reference is recorded in its Outcome
  and the remaining references still run.

The pool adds no caching semantics of its own. Two workers handed the same
reference fall through to the cache's lock protocol like two independent
processes would.
*/
package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/pkg/failure"
)

// Fetcher is the slice of the cache facade the pool needs.
type Fetcher interface {
	GetOrFetch(ctx context.Context, reference string, getParam cache.GetParam) (cache.GetResult, failure.ClassifiedError)
}

// Run fetches every reference through the pool and blocks until the whole
// batch settled. The returned Summary holds the per-reference outcomes in
// the same order as the input slice.
func Run(ctx context.Context, fetcher Fetcher, references []string, runParam RunParam) Summary {
	start := time.Now()

	if len(references) == 0 {
		return Summary{elapsed: time.Since(start)}
	}

	workers := runParam.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(references) {
		workers = len(references)
	}

	// Workers write to disjoint indices, so the slice needs no lock and
	// the input order survives out-of-order completion.
	outcomes := make([]Outcome, len(references))

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = fetchOne(ctx, fetcher, references[i], runParam)
			}
		}()
	}

	for i := range references {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return summarize(outcomes, time.Since(start))
}

func fetchOne(ctx context.Context, fetcher Fetcher, reference string, runParam RunParam) Outcome {
	result, err := fetcher.GetOrFetch(ctx, reference, cache.NewGetParam(runParam.forceRefresh))
	if err != nil {
		return Outcome{
			reference: reference,
			err:       err,
		}
	}
	return Outcome{
		reference: reference,
		localPath: result.LocalPath(),
		wasCached: result.WasCached(),
	}
}

func summarize(outcomes []Outcome, elapsed time.Duration) Summary {
	summary := Summary{
		outcomes: outcomes,
		elapsed:  elapsed,
	}
	for i := range outcomes {
		switch {
		case outcomes[i].err != nil:
			summary.failures++
		case outcomes[i].wasCached:
			summary.hits++
		default:
			summary.fetched++
		}
	}
	return summary
}
