package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/rohmanhakim/datacache/internal/metadata"
	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests
- Stream response bodies to disk without buffering them in memory
- Write into a hidden temp file in the destination directory, then publish
  with a single rename
- Classify failures and retry the transient ones

Download Semantics

- The destination file is always absent, the previous complete version, or
  the new complete version; readers never observe partial content
- Temp files live in the destination directory so the publishing rename
  stays on one filesystem
- The temp file is synced before the rename so a crash cannot publish a
  half-written entry
- Every failure path removes its temp file
- The per-call budget comes from the context deadline; an expired deadline
  is retryable but each retry fails fast, so exhaustion is bounded by the
  backoff schedule

The downloader never inspects content; it only moves bytes and records
transfer metadata.
*/

type HttpDownloader struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

func NewHttpDownloader(
	metadataSink metadata.MetadataSink,
) HttpDownloader {
	return HttpDownloader{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
	}
}

func (h *HttpDownloader) Download(
	ctx context.Context,
	downloadParam DownloadParam,
	retryParam retry.RetryParam,
) (DownloadResult, failure.ClassifiedError) {
	callerMethod := "HttpDownloader.Download"
	startTime := time.Now()

	result, attempts, err := h.downloadWithRetry(ctx, downloadParam, retryParam)

	duration := time.Since(startTime)

	// Record the download event with actual data
	var statusCode int
	var sizeBytes int64
	var contentDigest string

	if err == nil {
		statusCode = result.Code()
		sizeBytes = result.SizeBytes()
		contentDigest = result.ContentDigest()
		result.meta.elapsed = duration
	}

	retryCount := attempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	h.metadataSink.RecordFetch(
		downloadParam.sourceUrl.String(),
		statusCode,
		duration,
		sizeBytes,
		contentDigest,
		retryCount,
	)

	if err != nil {
		h.recordDownloadError(callerMethod, downloadParam.sourceUrl, err)
		return DownloadResult{}, err
	}

	return result, nil
}

func (h *HttpDownloader) recordDownloadError(callerMethod string, sourceUrl url.URL, err failure.ClassifiedError) {
	var downloadError *DownloadError
	if errors.As(err, &downloadError) {
		// record download error event
		h.metadataSink.RecordError(
			time.Now(),
			"downloader",
			callerMethod,
			mapDownloadErrorToMetadataCause(downloadError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceUrl.String()),
			},
		)
		return
	}

	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		// record retry error event
		h.metadataSink.RecordError(
			time.Now(),
			"downloader",
			callerMethod,
			metadata.CauseUnknown,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrMessage, retryError.Error()),
				metadata.NewAttr(metadata.AttrURL, sourceUrl.String()),
			},
		)
	}
}

func (h *HttpDownloader) downloadWithRetry(
	ctx context.Context,
	downloadParam DownloadParam,
	retryParam retry.RetryParam,
) (DownloadResult, int, failure.ClassifiedError) {
	var lastAttemptErr failure.ClassifiedError

	downloadTask := func() (DownloadResult, failure.ClassifiedError) {
		attemptResult, attemptErr := h.performDownload(ctx, downloadParam)
		if attemptErr != nil {
			lastAttemptErr = attemptErr
		}
		return attemptResult, attemptErr
	}

	result := retry.Retry(retryParam, downloadTask)

	if result.IsFailure() {
		err := result.Err()

		// Exhausted retries flatten the terminal cause into message text.
		// Callers route on the classified cause, so surface the last
		// attempt's error instead of the retry wrapper.
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) && lastAttemptErr != nil {
			return DownloadResult{}, result.Attempts(), lastAttemptErr
		}

		return DownloadResult{}, result.Attempts(), err
	}

	return result.Value(), result.Attempts(), nil
}

func (h *HttpDownloader) performDownload(ctx context.Context, downloadParam DownloadParam) (DownloadResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadParam.sourceUrl.String(), nil)
	if err != nil {
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(downloadParam.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return DownloadResult{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	// Handle HTTP status codes
	switch {
	case resp.StatusCode >= 500:
		// Server errors (5xx) are retryable
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode == 429:
		// Too Many Requests is retryable
		return DownloadResult{}, &DownloadError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}

	case resp.StatusCode >= 400:
		// Client errors are not retryable
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestRejected,
		}

	case resp.StatusCode >= 300:
		// Redirects should be handled by http.Client, but if we get here,
		// it means redirect limit exceeded
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	return h.streamToDestination(resp, downloadParam.destPath)
}

// streamToDestination copies the response body into a hidden temp file next
// to destPath and publishes it with one rename. The temp file never outlives
// a failure.
func (h *HttpDownloader) streamToDestination(resp *http.Response, destPath string) (DownloadResult, failure.ClassifiedError) {
	destDir := filepath.Dir(destPath)
	destBase := filepath.Base(destPath)

	tempFile, err := os.CreateTemp(destDir, "."+destBase+".tmp-*")
	if err != nil {
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("failed to create temp file in %s: %v", destDir, err),
			Retryable: false,
			Cause:     ErrCauseTempCreateFailed,
		}
	}
	tempPath := tempFile.Name()

	discard := func() {
		tempFile.Close()
		os.Remove(tempPath)
	}

	hasher := xxhash.New()
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), resp.Body)
	if err != nil {
		discard()
		return DownloadResult{}, classifyStreamError(err)
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		discard()
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("read %d of %d declared bytes", written, resp.ContentLength),
			Retryable: true,
			Cause:     ErrCauseTruncatedBody,
		}
	}

	// Sync before rename so a crash cannot publish a half-written entry
	if err := tempFile.Sync(); err != nil {
		discard()
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("failed to sync temp file: %v", err),
			Retryable: false,
			Cause:     ErrCauseWriteFailed,
		}
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("failed to close temp file: %v", err),
			Retryable: false,
			Cause:     ErrCauseWriteFailed,
		}
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return DownloadResult{}, &DownloadError{
			Message:   fmt.Sprintf("failed to publish %s: %v", destPath, err),
			Retryable: false,
			Cause:     ErrCausePublishFailed,
		}
	}

	result := DownloadResult{
		path: destPath,
		meta: transferMeta{
			statusCode:           resp.StatusCode,
			transferredSizeBytes: written,
			contentDigest:        fmt.Sprintf("%016x", hasher.Sum64()),
		},
	}

	return result, nil
}

func classifyTransportError(err error) *DownloadError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &DownloadError{
			Message:   fmt.Sprintf("request timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}

	case errors.Is(err, context.Canceled):
		return &DownloadError{
			Message:   fmt.Sprintf("request canceled: %v", err),
			Retryable: false,
			Cause:     ErrCauseCanceled,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &DownloadError{
			Message:   fmt.Sprintf("request timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}
	}

	// Network/transport errors are retryable
	return &DownloadError{
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
		Cause:     ErrCauseNetworkFailure,
	}
}

func classifyStreamError(err error) *DownloadError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &DownloadError{
			Message:   fmt.Sprintf("body read timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}

	case errors.Is(err, context.Canceled):
		return &DownloadError{
			Message:   fmt.Sprintf("body read canceled: %v", err),
			Retryable: false,
			Cause:     ErrCauseCanceled,
		}

	case errors.Is(err, io.ErrUnexpectedEOF):
		// The body reader enforces Content-Length, so a severed transfer
		// surfaces here rather than as a short clean read
		return &DownloadError{
			Message:   fmt.Sprintf("body ended early: %v", err),
			Retryable: true,
			Cause:     ErrCauseTruncatedBody,
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		// Only the temp file side of the copy produces path errors
		return &DownloadError{
			Message:   fmt.Sprintf("failed to write temp file: %v", err),
			Retryable: false,
			Cause:     ErrCauseWriteFailed,
		}
	}

	return &DownloadError{
		Message:   fmt.Sprintf("failed to read response body: %v", err),
		Retryable: true,
		Cause:     ErrCauseNetworkFailure,
	}
}

// Accept-Encoding is left to the transport so that bodies arrive
// transparently decompressed; a cached .csv must be readable as-is.
func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "*/*",
	}
}
