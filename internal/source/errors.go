package source

import (
	"fmt"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

type ResolveErrorCause string

const (
	ErrCauseEmptyReference   ResolveErrorCause = "empty reference"
	ErrCauseUnparsable       ResolveErrorCause = "unparsable url"
	ErrCauseSchemeNotAllowed ResolveErrorCause = "scheme not allowed"
	ErrCauseMissingHost      ResolveErrorCause = "missing host"
	ErrCauseDeniedHost       ResolveErrorCause = "denied host"
)

// ResolveError reports a reference that cannot be classified into a usable
// local path or remote URL. Resolution is pure validation, so none of these
// are retryable: the same input will fail the same way every time.
type ResolveError struct {
	Message   string
	Retryable bool
	Cause     ResolveErrorCause
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve error: %s, %s", e.Cause, e.Message)
}

func (e *ResolveError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ResolveError) IsRetryable() bool {
	return e.Retryable
}
