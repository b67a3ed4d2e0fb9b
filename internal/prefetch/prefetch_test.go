package prefetch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/datacache/internal/prefetch"
)

func TestRunReturnsOutcomesInInputOrder(t *testing.T) {
	references := []string{"a", "b", "c", "d", "e"}
	stub := &stubFetcher{delay: 2 * time.Millisecond}

	summary := prefetch.Run(context.Background(), stub, references, prefetch.NewRunParam(3, false))

	outcomes := summary.Outcomes()
	require.Len(t, outcomes, len(references))
	for i, reference := range references {
		assert.Equal(t, reference, outcomes[i].Reference())
		assert.Equal(t, "/cache/"+reference, outcomes[i].LocalPath())
		assert.Nil(t, outcomes[i].Err())
	}
	assert.Equal(t, len(references), summary.Fetched())
	assert.Equal(t, 0, summary.Hits())
	assert.Equal(t, 0, summary.Failures())
}

func TestRunNeverExceedsWorkerBound(t *testing.T) {
	references := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	stub := &stubFetcher{delay: 10 * time.Millisecond}

	summary := prefetch.Run(context.Background(), stub, references, prefetch.NewRunParam(4, false))

	assert.Equal(t, len(references), stub.observedCalls())
	assert.LessOrEqual(t, stub.observedMaxInFlight(), 4)
	assert.GreaterOrEqual(t, stub.observedMaxInFlight(), 2)
	assert.Equal(t, len(references), summary.Fetched())
}

func TestRunCollectsFailuresWithoutAborting(t *testing.T) {
	references := []string{"a", "bad", "c"}
	stub := &stubFetcher{failOn: map[string]bool{"bad": true}}

	summary := prefetch.Run(context.Background(), stub, references, prefetch.NewRunParam(2, false))

	assert.Equal(t, len(references), stub.observedCalls())
	assert.Equal(t, 1, summary.Failures())
	assert.Equal(t, 2, summary.Fetched())

	outcomes := summary.Outcomes()
	require.Len(t, outcomes, 3)
	require.NotNil(t, outcomes[1].Err())
	assert.Contains(t, outcomes[1].Err().Error(), "bad")
	assert.Empty(t, outcomes[1].LocalPath())
	assert.Nil(t, outcomes[0].Err())
	assert.Nil(t, outcomes[2].Err())
}

func TestRunCountsCacheHits(t *testing.T) {
	references := []string{"a", "b", "c"}
	stub := &stubFetcher{cachedOn: map[string]bool{"b": true, "c": true}}

	summary := prefetch.Run(context.Background(), stub, references, prefetch.NewRunParam(2, false))

	assert.Equal(t, 1, summary.Fetched())
	assert.Equal(t, 2, summary.Hits())

	outcomes := summary.Outcomes()
	assert.False(t, outcomes[0].WasCached())
	assert.True(t, outcomes[1].WasCached())
	assert.True(t, outcomes[2].WasCached())
}

func TestRunTreatsZeroWorkersAsOne(t *testing.T) {
	references := []string{"a", "b", "c"}
	stub := &stubFetcher{delay: 2 * time.Millisecond}

	summary := prefetch.Run(context.Background(), stub, references, prefetch.NewRunParam(0, false))

	assert.Equal(t, len(references), summary.Fetched())
	assert.Equal(t, 1, stub.observedMaxInFlight())
}

func TestRunClampsWorkersToReferenceCount(t *testing.T) {
	references := []string{"a", "b"}
	stub := &stubFetcher{delay: 2 * time.Millisecond}

	summary := prefetch.Run(context.Background(), stub, references, prefetch.NewRunParam(16, false))

	assert.Equal(t, len(references), summary.Fetched())
	assert.LessOrEqual(t, stub.observedMaxInFlight(), 2)
}

func TestRunForceRefreshReachesEveryFetch(t *testing.T) {
	stub := &stubFetcher{}

	prefetch.Run(context.Background(), stub, []string{"a"}, prefetch.NewRunParam(1, true))

	assert.True(t, stub.observedRefresh())
}

func TestRunEmptyReferenceList(t *testing.T) {
	stub := &stubFetcher{}

	summary := prefetch.Run(context.Background(), stub, nil, prefetch.NewRunParam(4, false))

	assert.Empty(t, summary.Outcomes())
	assert.Equal(t, 0, summary.Fetched())
	assert.Equal(t, 0, summary.Hits())
	assert.Equal(t, 0, summary.Failures())
	assert.Equal(t, 0, stub.observedCalls())
}

func TestRunPassesContextToFetches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	references := []string{"a", "b", "c"}
	stub := &stubFetcher{}

	summary := prefetch.Run(ctx, stub, references, prefetch.NewRunParam(2, false))

	assert.Equal(t, len(references), summary.Failures())
	for _, outcome := range summary.Outcomes() {
		assert.NotNil(t, outcome.Err())
	}
}

func TestNewRunParam(t *testing.T) {
	runParam := prefetch.NewRunParam(8, true)

	assert.Equal(t, 8, runParam.Workers())
	assert.True(t, runParam.ForceRefresh())
}
