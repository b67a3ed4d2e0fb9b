package cachekey

import (
	"fmt"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

type DeriveErrorCause string

const (
	ErrCauseUnsupportedAlgo DeriveErrorCause = "unsupported algorithm"
)

// DeriveError reports a key derivation that cannot produce a digest. The
// only way to get here is a misconfigured hash algorithm, so it is never
// retryable.
type DeriveError struct {
	Message   string
	Retryable bool
	Cause     DeriveErrorCause
}

func (e *DeriveError) Error() string {
	return fmt.Sprintf("derive error: %s, %s", e.Cause, e.Message)
}

func (e *DeriveError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *DeriveError) IsRetryable() bool {
	return e.Retryable
}
