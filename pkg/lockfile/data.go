package lockfile

import "time"

// Acquisition tuning. These values are passed from outside (e.g., config)
// and should not be known by the lock internally.
type AcquireParam struct {
	waitTimeout  time.Duration
	pollInterval time.Duration
	staleAfter   time.Duration
}

func NewAcquireParam(
	waitTimeout time.Duration,
	pollInterval time.Duration,
	staleAfter time.Duration,
) AcquireParam {
	return AcquireParam{
		waitTimeout:  waitTimeout,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
	}
}

// WaitTimeout bounds the total time spent waiting for a busy lock.
func (p *AcquireParam) WaitTimeout() time.Duration {
	return p.waitTimeout
}

// PollInterval spaces acquisition attempts while the lock is busy.
func (p *AcquireParam) PollInterval() time.Duration {
	return p.pollInterval
}

// StaleAfter is the age past which an existing lock file is considered
// abandoned and reclaimed. Zero disables reclaim and mtime keepalive.
func (p *AcquireParam) StaleAfter() time.Duration {
	return p.staleAfter
}
