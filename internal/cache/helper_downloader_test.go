package cache_test

import (
	"context"
	"sync"

	"github.com/rohmanhakim/datacache/internal/downloader"
	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/retry"
)

// capturingDownloader records the parameters the facade hands to the
// downloader.
type capturingDownloader struct {
	mu     sync.Mutex
	params []downloader.DownloadParam
}

func (d *capturingDownloader) Download(
	ctx context.Context,
	downloadParam downloader.DownloadParam,
	retryParam retry.RetryParam,
) (downloader.DownloadResult, failure.ClassifiedError) {
	d.mu.Lock()
	d.params = append(d.params, downloadParam)
	d.mu.Unlock()
	return downloader.DownloadResult{}, &downloader.DownloadError{
		Message:   "stub",
		Retryable: false,
		Cause:     downloader.ErrCauseNetworkFailure,
	}
}
