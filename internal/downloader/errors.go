package downloader

import (
	"fmt"

	"github.com/rohmanhakim/datacache/internal/metadata"
	"github.com/rohmanhakim/datacache/pkg/failure"
)

type DownloadErrorCause string

const (
	ErrCauseTimeout               DownloadErrorCause = "timeout"
	ErrCauseCanceled              DownloadErrorCause = "canceled"
	ErrCauseNetworkFailure        DownloadErrorCause = "network issues"
	ErrCauseTruncatedBody         DownloadErrorCause = "truncated body"
	ErrCauseRequest5xx            DownloadErrorCause = "5xx"
	ErrCauseRequestTooMany        DownloadErrorCause = "too many requests"
	ErrCauseRequestRejected       DownloadErrorCause = "request rejected"
	ErrCauseRedirectLimitExceeded DownloadErrorCause = "reached redirect limit"
	ErrCauseTempCreateFailed      DownloadErrorCause = "temp file create failed"
	ErrCauseWriteFailed           DownloadErrorCause = "write failed"
	ErrCausePublishFailed         DownloadErrorCause = "publish failed"
)

type DownloadError struct {
	Message   string
	Retryable bool
	Cause     DownloadErrorCause
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download error: %s, %s", e.Cause, e.Message)
}

func (e *DownloadError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *DownloadError) IsRetryable() bool {
	return e.Retryable
}

// mapDownloadErrorToMetadataCause maps downloader-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapDownloadErrorToMetadataCause(err *DownloadError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNetworkFailure, ErrCauseRequest5xx:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestTooMany, ErrCauseRequestRejected:
		return metadata.CausePolicyDisallow
	case ErrCauseTruncatedBody:
		return metadata.CauseContentInvalid
	case ErrCauseTempCreateFailed, ErrCauseWriteFailed, ErrCausePublishFailed:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
