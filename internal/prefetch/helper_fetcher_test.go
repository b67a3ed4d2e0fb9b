package prefetch_test

import (
	"context"
	"sync"
	"time"

	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/internal/prefetch"
	"github.com/rohmanhakim/datacache/pkg/failure"
)

// compile-time interface check
var _ prefetch.Fetcher = (*stubFetcher)(nil)

type stubFailure struct {
	message string
}

func (e *stubFailure) Error() string {
	return e.message
}

func (e *stubFailure) Severity() failure.Severity {
	return failure.SeverityFatal
}

// stubFetcher satisfies prefetch.Fetcher and tracks how the pool drives it.
type stubFetcher struct {
	delay    time.Duration
	failOn   map[string]bool
	cachedOn map[string]bool

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
	sawRefresh  bool
}

func (s *stubFetcher) GetOrFetch(ctx context.Context, reference string, getParam cache.GetParam) (cache.GetResult, failure.ClassifiedError) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	if getParam.ForceRefresh() {
		s.sawRefresh = true
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return cache.GetResult{}, &stubFailure{message: err.Error()}
	}
	if s.failOn[reference] {
		return cache.GetResult{}, &stubFailure{message: "fetch failed for " + reference}
	}
	return cache.NewGetResultForTest("/cache/"+reference, s.cachedOn[reference]), nil
}

func (s *stubFetcher) observedMaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *stubFetcher) observedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubFetcher) observedRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawRefresh
}
