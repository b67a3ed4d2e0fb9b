package prefetch

import (
	"time"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

// RunParam sizes the pool and carries the fetch options shared by every
// reference in the batch.
type RunParam struct {
	workers      int
	forceRefresh bool
}

func NewRunParam(workers int, forceRefresh bool) RunParam {
	return RunParam{
		workers:      workers,
		forceRefresh: forceRefresh,
	}
}

func (p *RunParam) Workers() int {
	return p.workers
}

func (p *RunParam) ForceRefresh() bool {
	return p.forceRefresh
}

// Outcome is the result of one reference's fetch. Exactly one of err and
// localPath is meaningful: a failed fetch has no path.
type Outcome struct {
	reference string
	localPath string
	wasCached bool
	err       failure.ClassifiedError
}

func (o *Outcome) Reference() string {
	return o.reference
}

func (o *Outcome) LocalPath() string {
	return o.localPath
}

func (o *Outcome) WasCached() bool {
	return o.wasCached
}

func (o *Outcome) Err() failure.ClassifiedError {
	return o.err
}

// Summary aggregates a finished batch. fetched counts fresh downloads,
// hits counts references served from existing entries, failures counts
// references whose Outcome carries an error.
type Summary struct {
	outcomes []Outcome
	fetched  int
	hits     int
	failures int
	elapsed  time.Duration
}

// Outcomes returns the per-reference results in input order.
func (s *Summary) Outcomes() []Outcome {
	return s.outcomes
}

func (s *Summary) Fetched() int {
	return s.fetched
}

func (s *Summary) Hits() int {
	return s.hits
}

func (s *Summary) Failures() int {
	return s.failures
}

func (s *Summary) Elapsed() time.Duration {
	return s.elapsed
}

// NewOutcomeForTest creates an Outcome for testing purposes. This allows
// test packages to construct Outcome values without accessing unexported
// fields directly.
func NewOutcomeForTest(reference string, localPath string, wasCached bool, err failure.ClassifiedError) Outcome {
	return Outcome{
		reference: reference,
		localPath: localPath,
		wasCached: wasCached,
		err:       err,
	}
}
