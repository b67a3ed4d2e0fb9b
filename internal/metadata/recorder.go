package metadata

import (
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch timestamps, durations, and transfer sizes
- HTTP status codes
- Content digests
- Publish and invalidation events
- Lock waits and stale reclaims

Logging Goals
- Debuggable cache behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Digests
- Status codes
- Durations
- Identifiers (cache key, request ID)

Determinism guarantees:
 - Metadata does not affect control flow
 - Output is stable given identical inputs

Metadata is write-only.
No component may read metadata to influence cache decisions.
*/

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		sizeBytes int64,
		contentDigest string,
		retryCount int,
	)

	RecordPublish(cacheKey string, path string, sizeBytes int64, refreshed bool)

	RecordHit(cacheKey string, path string)

	RecordLockWait(cacheKey string, waited time.Duration)
}

// NoopSink implements MetadataSink but does nothing.
// Callers (or tests) decide whether to inject ZerologSink or NoopSink.
// Purpose is to make metadata orthogonal.

type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	sizeBytes int64,
	contentDigest string,
	retryCount int,
) {
}

func (n *NoopSink) RecordPublish(cacheKey string, path string, sizeBytes int64, refreshed bool) {}

func (n *NoopSink) RecordHit(cacheKey string, path string) {}

func (n *NoopSink) RecordLockWait(cacheKey string, waited time.Duration) {}

/*
ZerologSink writes every event as one structured log line.
It must not:
- perform I/O decisions
- affect control flow
- buffer or reorder events
Events are recorded synchronously in the order they are received from a
single caller. No global ordering across concurrent callers is guaranteed;
ordering is provided for debuggability, not causality.
*/
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) ZerologSink {
	return ZerologSink{
		logger: logger,
	}
}

func (z *ZerologSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	event := z.logger.Error().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Str("cause", cause.String())
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg(details)
}

func (z *ZerologSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	sizeBytes int64,
	contentDigest string,
	retryCount int,
) {
	z.logger.Info().
		Str("url", fetchUrl).
		Int("status", httpStatus).
		Dur("elapsed", duration).
		Int64("bytes", sizeBytes).
		Str("content_digest", contentDigest).
		Int("retries", retryCount).
		Msg("fetch")
}

func (z *ZerologSink) RecordPublish(cacheKey string, path string, sizeBytes int64, refreshed bool) {
	z.logger.Info().
		Str("cache_key", cacheKey).
		Str("path", path).
		Int64("bytes", sizeBytes).
		Bool("refreshed", refreshed).
		Msg("publish")
}

func (z *ZerologSink) RecordHit(cacheKey string, path string) {
	z.logger.Debug().
		Str("cache_key", cacheKey).
		Str("path", path).
		Msg("hit")
}

func (z *ZerologSink) RecordLockWait(cacheKey string, waited time.Duration) {
	z.logger.Debug().
		Str("cache_key", cacheKey).
		Dur("waited", waited).
		Msg("lock wait")
}
