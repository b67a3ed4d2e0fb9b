package lockfile

import (
	"fmt"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

type LockErrorCause string

const (
	ErrCauseCreateFailed  LockErrorCause = "create failed"
	ErrCauseWaitTimeout   LockErrorCause = "wait timeout"
	ErrCauseReleaseFailed LockErrorCause = "release failed"
)

type LockError struct {
	Message   string
	Retryable bool
	Cause     LockErrorCause
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock error: %s, %s", e.Cause, e.Message)
}

func (e *LockError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *LockError) IsRetryable() bool {
	return e.Retryable
}
