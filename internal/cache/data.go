package cache

import (
	"time"

	"github.com/rohmanhakim/datacache/internal/cachekey"
	"github.com/rohmanhakim/datacache/internal/config"
	"github.com/rohmanhakim/datacache/internal/source"
	"github.com/rohmanhakim/datacache/pkg/lockfile"
	"github.com/rohmanhakim/datacache/pkg/retry"
	"github.com/rohmanhakim/datacache/pkg/timeutil"
)

// CacheParam carries everything the facade needs to resolve, derive, guard,
// and fetch. Values are assembled from config and should not be known by the
// cache internally.
type CacheParam struct {
	cacheDir     string
	userAgent    string
	fetchTimeout time.Duration
	resolveParam source.ResolveParam
	deriveParam  cachekey.DeriveParam
	retryParam   retry.RetryParam
	acquireParam lockfile.AcquireParam
}

func NewCacheParam(
	cacheDir string,
	userAgent string,
	fetchTimeout time.Duration,
	resolveParam source.ResolveParam,
	deriveParam cachekey.DeriveParam,
	retryParam retry.RetryParam,
	acquireParam lockfile.AcquireParam,
) CacheParam {
	return CacheParam{
		cacheDir:     cacheDir,
		userAgent:    userAgent,
		fetchTimeout: fetchTimeout,
		resolveParam: resolveParam,
		deriveParam:  deriveParam,
		retryParam:   retryParam,
		acquireParam: acquireParam,
	}
}

func (p *CacheParam) CacheDir() string {
	return p.cacheDir
}

func (p *CacheParam) UserAgent() string {
	return p.userAgent
}

func (p *CacheParam) FetchTimeout() time.Duration {
	return p.fetchTimeout
}

func (p *CacheParam) ResolveParam() source.ResolveParam {
	return p.resolveParam
}

func (p *CacheParam) DeriveParam() cachekey.DeriveParam {
	return p.deriveParam
}

func (p *CacheParam) RetryParam() retry.RetryParam {
	return p.retryParam
}

func (p *CacheParam) AcquireParam() lockfile.AcquireParam {
	return p.acquireParam
}

// ParamFromConfig assembles the facade's full parameter set from a built
// Config, so the CLI and the HTTP service wire the cache identically.
func ParamFromConfig(cfg config.Config) CacheParam {
	resolveParam := source.NewResolveParam(cfg.AllowedSchemes(), cfg.DeniedHosts())

	deriveParam := cachekey.NewDeriveParam(cfg.Namespace(), cfg.HashAlgoParsed(), cfg.DigestLen())

	retryParam := retry.NewRetryParam(
		cfg.BackoffInitialDuration(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)

	acquireParam := lockfile.NewAcquireParam(
		cfg.LockWaitTimeout(),
		cfg.LockPollInterval(),
		cfg.LockStaleAfter(),
	)

	return NewCacheParam(
		cfg.CacheDir(),
		cfg.UserAgent(),
		cfg.Timeout(),
		resolveParam,
		deriveParam,
		retryParam,
		acquireParam,
	)
}

type GetParam struct {
	forceRefresh bool
}

func NewGetParam(forceRefresh bool) GetParam {
	return GetParam{
		forceRefresh: forceRefresh,
	}
}

// ForceRefresh requests a fresh download even when an entry already exists.
func (p *GetParam) ForceRefresh() bool {
	return p.forceRefresh
}

type GetResult struct {
	localPath string
	wasCached bool
}

// LocalPath is a readable file: the caller's own path for local references,
// or the published cache entry for remote ones.
func (r *GetResult) LocalPath() string {
	return r.localPath
}

// WasCached reports whether the call was served from an existing entry
// without a network fetch. Local references always report false.
func (r *GetResult) WasCached() bool {
	return r.wasCached
}

// Entry describes one published file in the cache directory.
type Entry struct {
	name      string
	path      string
	sizeBytes int64
	modTime   time.Time
}

func (e *Entry) Name() string {
	return e.name
}

func (e *Entry) Path() string {
	return e.path
}

func (e *Entry) SizeBytes() int64 {
	return e.sizeBytes
}

func (e *Entry) ModTime() time.Time {
	return e.modTime
}

// NewGetResultForTest creates a GetResult for testing purposes. This allows
// test packages to construct GetResult values without accessing unexported
// fields directly.
func NewGetResultForTest(localPath string, wasCached bool) GetResult {
	return GetResult{
		localPath: localPath,
		wasCached: wasCached,
	}
}

// NewEntryForTest creates an Entry for testing purposes.
func NewEntryForTest(name string, path string, sizeBytes int64, modTime time.Time) Entry {
	return Entry{
		name:      name,
		path:      path,
		sizeBytes: sizeBytes,
		modTime:   modTime,
	}
}
