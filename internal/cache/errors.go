package cache

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/datacache/internal/metadata"
	"github.com/rohmanhakim/datacache/internal/source"
	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/lockfile"
)

type StoreErrorCause string

const (
	ErrCauseCreateDirFailed StoreErrorCause = "create dir failed"
	ErrCauseStatFailed      StoreErrorCause = "stat failed"
	ErrCauseListFailed      StoreErrorCause = "list failed"
	ErrCauseBadEntryName    StoreErrorCause = "bad entry name"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
	Path      string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s, %s", e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

// mapFacadeErrorToMetadataCause maps facade-level error semantics to the
// canonical metadata.ErrorCause table. Download failures are recorded by the
// downloader itself and never pass through here.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFacadeErrorToMetadataCause(err failure.ClassifiedError) metadata.ErrorCause {
	var resolveErr *source.ResolveError
	if errors.As(err, &resolveErr) {
		switch resolveErr.Cause {
		case source.ErrCauseSchemeNotAllowed, source.ErrCauseDeniedHost:
			return metadata.CausePolicyDisallow
		default:
			return metadata.CauseContentInvalid
		}
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return metadata.CauseStorageFailure
	}

	var lockErr *lockfile.LockError
	if errors.As(err, &lockErr) {
		return metadata.CauseStorageFailure
	}

	return metadata.CauseUnknown
}
