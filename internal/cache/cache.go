package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rohmanhakim/datacache/internal/cachekey"
	"github.com/rohmanhakim/datacache/internal/downloader"
	"github.com/rohmanhakim/datacache/internal/metadata"
	"github.com/rohmanhakim/datacache/internal/source"
	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/lockfile"
	"github.com/rohmanhakim/datacache/pkg/retry"
)

/*
 Cache is the sole control-plane authority over cache entries.

 Consistency guarantees:
 - Cache is the ONLY component allowed to decide whether a reference is
   served from disk or fetched from the network.
 - A reference must be resolved and its key derived before any filesystem
   or network work happens.
 - The fast path serves existing entries without taking the lock; it relies
   on publishes being atomic renames, so a concurrent writer can never
   expose partial content to it.
 - The slow path holds the entry's cross-process lock for the whole
   check-download-publish sequence and re-checks existence after acquiring,
   so concurrent misses on one key collapse into a single download.
 - forceRefresh skips both existence checks and always downloads; a failed
   refresh leaves the previous entry untouched.
 - Components below the facade may detect and classify failure, but never
   decide whether to serve stale, refetch, or give up.

 Metadata emission is observational only and MUST NOT influence cache
 decisions.
*/

type Cache struct {
	metadataSink metadata.MetadataSink
	store        Store
	downloader   downloader.Downloader
	param        CacheParam
}

func NewCache(cacheParam CacheParam, metadataSink metadata.MetadataSink) Cache {
	store := NewStore(cacheParam.CacheDir())
	httpDownloader := downloader.NewHttpDownloader(metadataSink)
	return Cache{
		metadataSink: metadataSink,
		store:        store,
		downloader:   &httpDownloader,
		param:        cacheParam,
	}
}

// NewCacheWithDeps creates a Cache with injected dependencies for testing.
// This constructor allows tests to provide mock implementations of the
// downloader and metadata interfaces to verify behavior without relying on
// real infrastructure.
func NewCacheWithDeps(
	store Store,
	dl downloader.Downloader,
	metadataSink metadata.MetadataSink,
	cacheParam CacheParam,
) Cache {
	return Cache{
		metadataSink: metadataSink,
		store:        store,
		downloader:   dl,
		param:        cacheParam,
	}
}

func (c *Cache) Store() *Store {
	return &c.store
}

// GetOrFetch returns a readable local path for the reference.
//
// Local references pass through unchanged and never touch the cache
// directory; whether the file exists is the reader's concern, not the
// cache's. Remote references are served from the cache when possible;
// otherwise the resource is downloaded under the entry's lock and
// published atomically before the path is returned.
func (c *Cache) GetOrFetch(ctx context.Context, reference string, getParam GetParam) (GetResult, failure.ClassifiedError) {
	callerMethod := "Cache.GetOrFetch"

	ref, err := source.Resolve(reference, c.param.resolveParam)
	if err != nil {
		c.recordFacadeError(callerMethod, reference, err)
		return GetResult{}, err
	}

	if ref.IsLocal() {
		// Local paths are the caller's own files; nothing is copied into
		// the cache and nothing counts as a cache hit.
		return GetResult{
			localPath: ref.LocalPath(),
			wasCached: false,
		}, nil
	}

	return c.fetchRemote(ctx, callerMethod, ref, getParam)
}

func (c *Cache) fetchRemote(ctx context.Context, callerMethod string, ref source.Reference, getParam GetParam) (GetResult, failure.ClassifiedError) {
	remoteUrl := ref.RemoteURL()

	key, err := cachekey.Derive(remoteUrl, c.param.deriveParam)
	if err != nil {
		c.recordFacadeError(callerMethod, remoteUrl.String(), err)
		return GetResult{}, err
	}

	if err := c.store.Ensure(); err != nil {
		c.recordFacadeError(callerMethod, remoteUrl.String(), err)
		return GetResult{}, err
	}

	entryPath := c.store.PathFor(key)

	// Fast path: published entries are complete by construction, so a hit
	// needs no lock.
	if !getParam.forceRefresh {
		exists, err := c.store.Has(key)
		if err != nil {
			c.recordFacadeError(callerMethod, remoteUrl.String(), err)
			return GetResult{}, err
		}
		if exists {
			c.metadataSink.RecordHit(key.Filename(), entryPath)
			return GetResult{
				localPath: entryPath,
				wasCached: true,
			}, nil
		}
	}

	var result GetResult
	lockWaitStart := time.Now()

	lockErr := lockfile.WithLock(c.store.LockPathFor(key), c.param.acquireParam, func() failure.ClassifiedError {
		c.metadataSink.RecordLockWait(key.Filename(), time.Since(lockWaitStart))

		// Another process may have published while we waited
		if !getParam.forceRefresh {
			exists, err := c.store.Has(key)
			if err != nil {
				return err
			}
			if exists {
				c.metadataSink.RecordHit(key.Filename(), entryPath)
				result = GetResult{
					localPath: entryPath,
					wasCached: true,
				}
				return nil
			}
		}

		hadPrevious, err := c.store.Has(key)
		if err != nil {
			return err
		}

		fetchCtx := ctx
		if c.param.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, c.param.fetchTimeout)
			defer cancel()
		}

		downloadResult, downloadErr := c.downloader.Download(
			fetchCtx,
			downloader.NewDownloadParam(remoteUrl, entryPath, c.param.userAgent),
			c.param.retryParam,
		)
		if downloadErr != nil {
			// Download failures are recorded by the downloader; the
			// previous entry, if any, stays published
			return downloadErr
		}

		c.metadataSink.RecordPublish(key.Filename(), entryPath, downloadResult.SizeBytes(), hadPrevious)
		result = GetResult{
			localPath: entryPath,
			wasCached: false,
		}
		return nil
	})

	if lockErr != nil {
		// Download failures were already recorded at the source
		var downloadError *downloader.DownloadError
		var retryError *retry.RetryError
		if !errors.As(lockErr, &downloadError) && !errors.As(lockErr, &retryError) {
			c.recordFacadeError(callerMethod, remoteUrl.String(), lockErr)
		}
		return GetResult{}, lockErr
	}

	return result, nil
}

// Invalidate removes the cache entry for a remote reference. Local
// references have no entry to remove.
func (c *Cache) Invalidate(reference string) failure.ClassifiedError {
	callerMethod := "Cache.Invalidate"

	ref, err := source.Resolve(reference, c.param.resolveParam)
	if err != nil {
		c.recordFacadeError(callerMethod, reference, err)
		return err
	}

	if ref.IsLocal() {
		return nil
	}

	key, err := cachekey.Derive(ref.RemoteURL(), c.param.deriveParam)
	if err != nil {
		c.recordFacadeError(callerMethod, reference, err)
		return err
	}

	return c.store.Invalidate(key)
}

func (c *Cache) recordFacadeError(callerMethod string, subject string, err failure.ClassifiedError) {
	c.metadataSink.RecordError(
		time.Now(),
		"cache",
		callerMethod,
		mapFacadeErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, subject),
		},
	)
}
