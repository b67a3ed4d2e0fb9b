package downloader

import (
	"net/url"
	"time"
)

// HTTP boundary

type DownloadParam struct {
	sourceUrl url.URL
	destPath  string
	userAgent string
}

func NewDownloadParam(sourceUrl url.URL, destPath string, userAgent string) DownloadParam {
	return DownloadParam{
		sourceUrl: sourceUrl,
		destPath:  destPath,
		userAgent: userAgent,
	}
}

func (p *DownloadParam) SourceURL() url.URL {
	return p.sourceUrl
}

func (p *DownloadParam) DestPath() string {
	return p.destPath
}

func (p *DownloadParam) UserAgent() string {
	return p.userAgent
}

type DownloadResult struct {
	path string
	meta transferMeta
}

func (r *DownloadResult) Path() string {
	return r.path
}

func (r *DownloadResult) Code() int {
	return r.meta.statusCode
}

func (r *DownloadResult) SizeBytes() int64 {
	return r.meta.transferredSizeBytes
}

// ContentDigest is the xxhash of the published bytes, recorded so that an
// operator can correlate cache entries with upstream content changes.
func (r *DownloadResult) ContentDigest() string {
	return r.meta.contentDigest
}

func (r *DownloadResult) Elapsed() time.Duration {
	return r.meta.elapsed
}

type transferMeta struct {
	statusCode           int
	transferredSizeBytes int64
	contentDigest        string
	elapsed              time.Duration
}

// NewDownloadResultForTest creates a DownloadResult for testing purposes.
// This allows test packages to construct DownloadResult values without
// accessing unexported fields directly.
func NewDownloadResultForTest(
	path string,
	statusCode int,
	transferredSizeBytes int64,
	contentDigest string,
	elapsed time.Duration,
) DownloadResult {
	return DownloadResult{
		path: path,
		meta: transferMeta{
			statusCode:           statusCode,
			transferredSizeBytes: transferredSizeBytes,
			contentDigest:        contentDigest,
			elapsed:              elapsed,
		},
	}
}
