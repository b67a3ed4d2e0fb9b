package dataset

import (
	"fmt"

	"github.com/rohmanhakim/datacache/pkg/failure"
)

type DatasetErrorCause string

const (
	ErrCauseFileMissing    DatasetErrorCause = "file missing"
	ErrCauseReadFailed     DatasetErrorCause = "read failed"
	ErrCauseParseFailed    DatasetErrorCause = "parse failed"
	ErrCauseEmptyInput     DatasetErrorCause = "empty input"
	ErrCauseColumnMismatch DatasetErrorCause = "column mismatch"
)

type DatasetError struct {
	Message   string
	Retryable bool
	Cause     DatasetErrorCause
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("dataset error: %s, %s", e.Cause, e.Message)
}

func (e *DatasetError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *DatasetError) IsRetryable() bool {
	return e.Retryable
}
