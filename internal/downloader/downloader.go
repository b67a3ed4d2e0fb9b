package downloader

import (
	"context"

	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/retry"
)

type Downloader interface {
	Download(
		ctx context.Context,
		downloadParam DownloadParam,
		retryParam retry.RetryParam,
	) (DownloadResult, failure.ClassifiedError)
}
