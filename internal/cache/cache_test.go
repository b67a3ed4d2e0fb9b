package cache_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/internal/cachekey"
	"github.com/rohmanhakim/datacache/internal/config"
	"github.com/rohmanhakim/datacache/internal/downloader"
	"github.com/rohmanhakim/datacache/internal/metadata"
	"github.com/rohmanhakim/datacache/internal/source"
	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/hashutil"
	"github.com/rohmanhakim/datacache/pkg/lockfile"
	"github.com/rohmanhakim/datacache/pkg/retry"
	"github.com/rohmanhakim/datacache/pkg/timeutil"
)

var entryNamePattern = regexp.MustCompile(`^[0-9a-f]{32}\.csv$`)

func testDeriveParam() cachekey.DeriveParam {
	return cachekey.NewDeriveParam("datacache/v1", hashutil.HashAlgoBLAKE3, 32)
}

func testCacheParam(cacheDir string, fetchTimeout time.Duration) cache.CacheParam {
	return cache.NewCacheParam(
		cacheDir,
		"datacache-test",
		fetchTimeout,
		source.NewResolveParam([]string{"http", "https"}, nil),
		testDeriveParam(),
		retry.NewRetryParam(
			1*time.Millisecond,
			1*time.Millisecond,
			42,
			2,
			timeutil.NewBackoffParam(1*time.Millisecond, 2.0, 5*time.Millisecond),
		),
		lockfile.NewAcquireParam(5*time.Second, 5*time.Millisecond, 10*time.Second),
	)
}

func newTestCache(cacheDir string, fetchTimeout time.Duration) cache.Cache {
	return cache.NewCache(testCacheParam(cacheDir, fetchTimeout), &metadata.NoopSink{})
}

func csvServer(body string) (*httptest.Server, *atomic.Int32) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, body)
	}))
	return server, &requests
}

func TestGetOrFetchLocalReferencePassesThrough(t *testing.T) {
	localDir := t.TempDir()
	localPath := filepath.Join(localDir, "input.csv")
	require.NoError(t, os.WriteFile(localPath, []byte("a,b\n1,2\n"), 0644))

	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := newTestCache(cacheDir, 0)

	result, err := c.GetOrFetch(context.Background(), localPath, cache.NewGetParam(false))

	require.Nil(t, err)
	assert.Equal(t, localPath, result.LocalPath())
	assert.False(t, result.WasCached())

	// The cache directory is never touched for local references
	_, statErr := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetOrFetchLocalMissingFileStillPassesThrough(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := newTestCache(cacheDir, 0)

	result, err := c.GetOrFetch(context.Background(), "/nonexistent/input.csv", cache.NewGetParam(false))

	// Whether a local file exists is the reader's concern; the cache
	// returns the path as-is and stays untouched.
	require.Nil(t, err)
	assert.Equal(t, "/nonexistent/input.csv", result.LocalPath())
	assert.False(t, result.WasCached())

	_, statErr := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetOrFetchInvalidReferenceFails(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := newTestCache(cacheDir, 0)

	_, err := c.GetOrFetch(context.Background(), "ftp://example.com/data.csv", cache.NewGetParam(false))

	require.NotNil(t, err)
	var resolveErr *source.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, source.ErrCauseSchemeNotAllowed, resolveErr.Cause)

	_, statErr := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetOrFetchDownloadsOnMiss(t *testing.T) {
	body := "a,b\n1,2\n"
	server, requests := csvServer(body)
	defer server.Close()

	cacheDir := t.TempDir()
	c := newTestCache(cacheDir, 0)

	result, err := c.GetOrFetch(context.Background(), server.URL+"/data.csv", cache.NewGetParam(false))

	require.Nil(t, err)
	assert.False(t, result.WasCached())
	assert.Equal(t, int32(1), requests.Load())

	assert.Equal(t, cacheDir, filepath.Dir(result.LocalPath()))
	assert.Regexp(t, entryNamePattern, filepath.Base(result.LocalPath()))

	content, readErr := os.ReadFile(result.LocalPath())
	require.NoError(t, readErr)
	assert.Equal(t, body, string(content))
}

func TestGetOrFetchSecondCallHitsCache(t *testing.T) {
	server, requests := csvServer("a,b\n1,2\n")
	defer server.Close()

	c := newTestCache(t.TempDir(), 0)
	reference := server.URL + "/data.csv"

	first, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)
	second, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)

	assert.False(t, first.WasCached())
	assert.True(t, second.WasCached())
	assert.Equal(t, first.LocalPath(), second.LocalPath())
	assert.Equal(t, int32(1), requests.Load())
}

func TestGetOrFetchForceRefreshDownloadsAgain(t *testing.T) {
	server, requests := csvServer("a,b\n1,2\n")
	defer server.Close()

	c := newTestCache(t.TempDir(), 0)
	reference := server.URL + "/data.csv"

	_, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)

	refreshed, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(true))
	require.Nil(t, err)
	assert.False(t, refreshed.WasCached())
	assert.Equal(t, int32(2), requests.Load())

	// The refreshed entry serves later calls without another fetch
	after, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)
	assert.True(t, after.WasCached())
	assert.Equal(t, int32(2), requests.Load())
}

func TestGetOrFetchFailedRefreshPreservesEntry(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "version one")
	}))
	defer server.Close()

	c := newTestCache(t.TempDir(), 0)
	reference := server.URL + "/data.csv"

	first, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)

	failing.Store(true)
	_, refreshErr := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(true))
	require.NotNil(t, refreshErr)

	content, readErr := os.ReadFile(first.LocalPath())
	require.NoError(t, readErr)
	assert.Equal(t, "version one", string(content))

	// And the preserved entry still serves
	served, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)
	assert.True(t, served.WasCached())
}

func TestGetOrFetchNetworkErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	c := newTestCache(cacheDir, 0)

	_, err := c.GetOrFetch(context.Background(), server.URL+"/data.csv", cache.NewGetParam(false))

	require.NotNil(t, err)
	var downloadErr *downloader.DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, downloader.ErrCauseRequest5xx, downloadErr.Cause)

	// No entry was published
	entries, listErr := os.ReadDir(cacheDir)
	require.NoError(t, listErr)
	for _, entry := range entries {
		assert.False(t, entryNamePattern.MatchString(entry.Name()),
			"no entry should be published, found %s", entry.Name())
	}
}

func TestGetOrFetchTimeoutSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, "too late")
	}))
	defer server.Close()

	c := newTestCache(t.TempDir(), 50*time.Millisecond)

	_, err := c.GetOrFetch(context.Background(), server.URL+"/data.csv", cache.NewGetParam(false))

	require.NotNil(t, err)
	var downloadErr *downloader.DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, downloader.ErrCauseTimeout, downloadErr.Cause)
}

func TestGetOrFetchConcurrentSameKeySingleDownload(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, "a,b\n1,2\n")
	}))
	defer server.Close()

	c := newTestCache(t.TempDir(), 0)
	reference := server.URL + "/data.csv"

	const callers = 4
	var wg sync.WaitGroup
	results := make([]cache.GetResult, callers)
	errs := make([]failure.ClassifiedError, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())

	fetched := 0
	for i := 0; i < callers; i++ {
		require.Nil(t, errs[i])
		assert.Equal(t, results[0].LocalPath(), results[i].LocalPath())
		if !results[i].WasCached() {
			fetched++
		}
	}
	assert.Equal(t, 1, fetched)
}

func TestGetOrFetchDistinctKeysDoNotBlockEachOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.csv" {
			time.Sleep(400 * time.Millisecond)
		}
		fmt.Fprint(w, "a,b\n")
	}))
	defer server.Close()

	c := newTestCache(t.TempDir(), 0)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := c.GetOrFetch(context.Background(), server.URL+"/slow.csv", cache.NewGetParam(false))
		assert.Nil(t, err)
	}()

	// Give the slow download time to take its lock
	time.Sleep(50 * time.Millisecond)

	fastStart := time.Now()
	_, err := c.GetOrFetch(context.Background(), server.URL+"/fast.csv", cache.NewGetParam(false))
	require.Nil(t, err)
	assert.Less(t, time.Since(fastStart), 300*time.Millisecond)

	<-slowDone
}

func TestGetOrFetchLockWaitTimeout(t *testing.T) {
	server, _ := csvServer("a,b\n")
	defer server.Close()

	cacheDir := t.TempDir()
	param := cache.NewCacheParam(
		cacheDir,
		"datacache-test",
		0,
		source.NewResolveParam([]string{"http", "https"}, nil),
		testDeriveParam(),
		retry.NewRetryParam(
			1*time.Millisecond,
			1*time.Millisecond,
			42,
			1,
			timeutil.NewBackoffParam(1*time.Millisecond, 2.0, 5*time.Millisecond),
		),
		// Short wait, long stale age: a fresh foreign lock wins
		lockfile.NewAcquireParam(80*time.Millisecond, 5*time.Millisecond, 10*time.Minute),
	)
	c := cache.NewCache(param, &metadata.NoopSink{})

	reference := server.URL + "/data.csv"
	parsed, parseErr := url.Parse(reference)
	require.NoError(t, parseErr)
	key, deriveErr := cachekey.Derive(*parsed, testDeriveParam())
	require.Nil(t, deriveErr)

	require.NoError(t, os.MkdirAll(cacheDir, 0755))
	foreignLock, lockErr := lockfile.Acquire(
		filepath.Join(cacheDir, key.LockName()),
		lockfile.NewAcquireParam(time.Second, 5*time.Millisecond, 0),
	)
	require.Nil(t, lockErr)
	defer foreignLock.Release()

	_, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))

	require.NotNil(t, err)
	var lockError *lockfile.LockError
	require.ErrorAs(t, err, &lockError)
	assert.Equal(t, lockfile.ErrCauseWaitTimeout, lockError.Cause)
}

func TestCacheInvalidateForcesNextDownload(t *testing.T) {
	server, requests := csvServer("a,b\n1,2\n")
	defer server.Close()

	c := newTestCache(t.TempDir(), 0)
	reference := server.URL + "/data.csv"

	_, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)

	require.Nil(t, c.Invalidate(reference))

	again, err := c.GetOrFetch(context.Background(), reference, cache.NewGetParam(false))
	require.Nil(t, err)
	assert.False(t, again.WasCached())
	assert.Equal(t, int32(2), requests.Load())
}

func TestCacheInvalidateLocalReferenceIsNoop(t *testing.T) {
	c := newTestCache(t.TempDir(), 0)

	assert.Nil(t, c.Invalidate("some/local/path.csv"))
}

func TestGetOrFetchHandsCanonicalURLToDownloader(t *testing.T) {
	cacheDir := t.TempDir()
	capturing := &capturingDownloader{}
	c := cache.NewCacheWithDeps(
		cache.NewStore(cacheDir),
		capturing,
		&metadata.NoopSink{},
		testCacheParam(cacheDir, 0),
	)

	_, err := c.GetOrFetch(context.Background(), "https://EXAMPLE.com:443/Data.CSV#top", cache.NewGetParam(false))
	require.NotNil(t, err)

	require.Len(t, capturing.params, 1)
	handed := capturing.params[0].SourceURL()
	assert.Equal(t, "https://example.com/Data.CSV", handed.String())

	destBase := filepath.Base(capturing.params[0].DestPath())
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}\.CSV$`), destBase)
	assert.Equal(t, cacheDir, filepath.Dir(capturing.params[0].DestPath()))
}

func TestParamFromConfig(t *testing.T) {
	cfg, err := config.WithDefault().
		WithCacheDir("/tmp/param-cache").
		WithUserAgent("paramtest/1.0").
		WithTimeout(45 * time.Second).
		WithHashAlgo("sha256").
		WithDigestLen(16).
		WithMaxAttempt(5).
		Build()
	require.NoError(t, err)

	param := cache.ParamFromConfig(cfg)

	assert.Equal(t, "/tmp/param-cache", param.CacheDir())
	assert.Equal(t, "paramtest/1.0", param.UserAgent())
	assert.Equal(t, 45*time.Second, param.FetchTimeout())

	deriveParam := param.DeriveParam()
	assert.Equal(t, hashutil.HashAlgo(hashutil.HashAlgoSHA256), deriveParam.Algo())
	assert.Equal(t, 16, deriveParam.DigestLen())

	assert.Equal(t, 5, param.RetryParam().MaxAttempts)

	acquireParam := param.AcquireParam()
	assert.Equal(t, cfg.LockStaleAfter(), acquireParam.StaleAfter())

	resolveParam := param.ResolveParam()
	assert.Equal(t, []string{"http", "https"}, resolveParam.AllowedSchemes())
}
