package lockfile

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

/*
Responsibilities

- Serialize check-or-refresh sequences on one path across OS processes
- Create the lock file atomically (create-or-fail), never truncating a holder
- Reclaim locks abandoned by crashed holders once they exceed a stale age
- Keep a held lock's mtime fresh so long transfers are not reclaimed
- Release on every exit path, including panics inside the guarded function

Lock files are advisory: only writers take them, readers of published
entries never do. A lock file's presence alone means nothing without its
age. Reclaiming a stale lock races in the worst case into two concurrent
holders; that duplicates work, and the atomic publish downstream keeps the
entry itself consistent.
*/

type Lock struct {
	path string
	stop chan struct{}

	mu       sync.Mutex
	released bool
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the advisory lock at path, waiting out a current holder up
// to the configured budget. An existing lock file older than StaleAfter is
// removed and acquisition retried. The returned Lock must be released by
// the caller.
func Acquire(path string, param AcquireParam) (*Lock, failure.ClassifiedError) {
	deadline := time.Now().Add(param.WaitTimeout())

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			// Owner pid is diagnostic only; staleness is judged by mtime
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()

			lock := &Lock{path: path}
			if interval := keepaliveInterval(param.StaleAfter()); interval > 0 {
				lock.stop = make(chan struct{})
				go lock.keepalive(interval)
			}
			return lock, nil
		}

		if !os.IsExist(err) {
			return nil, &LockError{
				Message:   fmt.Sprintf("cannot create lock file %s: %v", path, err),
				Retryable: false,
				Cause:     ErrCauseCreateFailed,
			}
		}

		// Held by someone else. Reclaim if abandoned, otherwise wait.
		if info, statErr := os.Stat(path); statErr == nil {
			if stale := param.StaleAfter(); stale > 0 && time.Since(info.ModTime()) > stale {
				os.Remove(path)
				continue
			}
		} else if os.IsNotExist(statErr) {
			// Freed between open and stat
			continue
		}

		if time.Now().After(deadline) {
			return nil, &LockError{
				Message:   fmt.Sprintf("gave up waiting for %s after %v", path, param.WaitTimeout()),
				Retryable: true,
				Cause:     ErrCauseWaitTimeout,
			}
		}

		time.Sleep(param.PollInterval())
	}
}

// Release removes the lock file and stops the keepalive. Releasing twice,
// or releasing a lock whose file is already gone, is not an error.
func (l *Lock) Release() failure.ClassifiedError {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true

	if l.stop != nil {
		close(l.stop)
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return &LockError{
			Message:   fmt.Sprintf("cannot remove lock file %s: %v", l.path, err),
			Retryable: false,
			Cause:     ErrCauseReleaseFailed,
		}
	}
	return nil
}

// WithLock runs fn while holding the lock at path. The lock is released on
// every exit path; a release failure is reported only when fn itself
// succeeded, so it never masks the original error.
func WithLock(path string, param AcquireParam, fn func() failure.ClassifiedError) (err failure.ClassifiedError) {
	lock, acquireErr := Acquire(path, param)
	if acquireErr != nil {
		return acquireErr
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	return fn()
}

func keepaliveInterval(staleAfter time.Duration) time.Duration {
	if staleAfter <= 0 {
		return 0
	}
	return staleAfter / 4
}

func (l *Lock) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			os.Chtimes(l.path, now, now)
		}
	}
}
