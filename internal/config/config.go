package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/rohmanhakim/datacache/pkg/hashutil"
	"github.com/rohmanhakim/datacache/pkg/timeutil"
)

type Config struct {
	//===============
	//  Sources
	//===============
	// URL schemes a remote reference may use. Anything else is rejected
	// before any network or filesystem work happens.
	allowedSchemes []string
	// Hostnames that are never fetched. Empty means no host is blocked.
	deniedHosts []string

	//===============
	// Cache
	//===============
	// Directory holding published entries, lock files, and in-flight temps
	cacheDir string
	// Namespace mixed into every cache key; bumping it retires all existing
	// entries at once
	namespace string
	// Hash algorithm for key derivation. In raw string, validated at Build
	hashAlgo string
	// Hex characters of the digest kept in entry filenames
	digestLen int

	//===============
	// Locking
	//===============
	// Maximum total time one call waits for another process's download
	lockWaitTimeout time.Duration
	// Spacing between acquisition attempts while a lock is busy
	lockPollInterval time.Duration
	// Age past which a lock file counts as abandoned. Build raises this to
	// at least four fetch timeouts so a slow legitimate download is never
	// reclaimed under its holder
	lockStaleAfter time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string
	// maximum attempt during retry
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration
	// Randomized variation added on top of the backoff delay.
	// Intentional randomness applied to timing.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64

	//===============
	// Dataset
	//===============
	// Field separator for delimiter-separated files. One rune, in raw string
	csvSeparator string
	// Whether the first row of a file carries column labels
	csvHasHeader bool

	//===============
	// Service
	//===============
	// Listen address of the HTTP service
	listenAddr string
	// Maximum concurrently accepted connections
	maxConns int
	// Worker goroutines used when prefetching several references at once
	prefetchWorkers int

	//===============
	// Logging
	//===============
	// Minimum level that gets emitted: trace, debug, info, warn, error
	logLevel string
	// Log file path. Empty logs to stderr only
	logFile string
	// Size in megabytes at which the log file rotates
	logMaxSizeMB int
	// Rotated files kept around
	logMaxBackups int
}

type configDTO struct {
	AllowedSchemes         []string      `mapstructure:"allowed_schemes"`
	DeniedHosts            []string      `mapstructure:"denied_hosts"`
	CacheDir               string        `mapstructure:"cache_dir"`
	Namespace              string        `mapstructure:"namespace"`
	HashAlgo               string        `mapstructure:"hash_algo"`
	DigestLen              int           `mapstructure:"digest_len"`
	LockWaitTimeout        time.Duration `mapstructure:"lock_wait_timeout"`
	LockPollInterval       time.Duration `mapstructure:"lock_poll_interval"`
	LockStaleAfter         time.Duration `mapstructure:"lock_stale_after"`
	Timeout                time.Duration `mapstructure:"timeout"`
	UserAgent              string        `mapstructure:"user_agent"`
	MaxAttempt             int           `mapstructure:"max_attempt"`
	BackoffInitialDuration time.Duration `mapstructure:"backoff_initial_duration"`
	BackoffMultiplier      float64       `mapstructure:"backoff_multiplier"`
	BackoffMaxDuration     time.Duration `mapstructure:"backoff_max_duration"`
	Jitter                 time.Duration `mapstructure:"jitter"`
	RandomSeed             int64         `mapstructure:"random_seed"`
	CsvSeparator           string        `mapstructure:"csv_separator"`
	CsvHasHeader           *bool         `mapstructure:"csv_has_header"`
	ListenAddr             string        `mapstructure:"listen_addr"`
	MaxConns               int           `mapstructure:"max_conns"`
	PrefetchWorkers        int           `mapstructure:"prefetch_workers"`
	LogLevel               string        `mapstructure:"log_level"`
	LogFile                string        `mapstructure:"log_file"`
	LogMaxSizeMB           int           `mapstructure:"log_max_size_mb"`
	LogMaxBackups          int           `mapstructure:"log_max_backups"`
}

var dtoKeys = []string{
	"allowed_schemes",
	"denied_hosts",
	"cache_dir",
	"namespace",
	"hash_algo",
	"digest_len",
	"lock_wait_timeout",
	"lock_poll_interval",
	"lock_stale_after",
	"timeout",
	"user_agent",
	"max_attempt",
	"backoff_initial_duration",
	"backoff_multiplier",
	"backoff_max_duration",
	"jitter",
	"random_seed",
	"csv_separator",
	"csv_has_header",
	"listen_addr",
	"max_conns",
	"prefetch_workers",
	"log_level",
	"log_file",
	"log_max_size_mb",
	"log_max_backups",
}

func newConfigFromDTO(dto configDTO) (Config, error) {

	// Start with default config
	cfg, err := WithDefault().Build()
	if err != nil {
		return Config{}, err
	}

	// Lists can stay empty; only override when the DTO provides values
	if len(dto.AllowedSchemes) > 0 {
		cfg.allowedSchemes = dto.AllowedSchemes
	}
	if len(dto.DeniedHosts) > 0 {
		cfg.deniedHosts = dto.DeniedHosts
	}

	// For other fields, only override if non-zero value is provided
	if dto.CacheDir != "" {
		cfg.cacheDir = dto.CacheDir
	}
	if dto.Namespace != "" {
		cfg.namespace = dto.Namespace
	}
	if dto.HashAlgo != "" {
		cfg.hashAlgo = dto.HashAlgo
	}
	if dto.DigestLen != 0 {
		cfg.digestLen = dto.DigestLen
	}
	if dto.LockWaitTimeout != 0 {
		cfg.lockWaitTimeout = dto.LockWaitTimeout
	}
	if dto.LockPollInterval != 0 {
		cfg.lockPollInterval = dto.LockPollInterval
	}
	if dto.LockStaleAfter != 0 {
		cfg.lockStaleAfter = dto.LockStaleAfter
	}
	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.CsvSeparator != "" {
		cfg.csvSeparator = dto.CsvSeparator
	}
	// Has-header defaults to true, so absence must not read as false
	if dto.CsvHasHeader != nil {
		cfg.csvHasHeader = *dto.CsvHasHeader
	}
	if dto.ListenAddr != "" {
		cfg.listenAddr = dto.ListenAddr
	}
	if dto.MaxConns != 0 {
		cfg.maxConns = dto.MaxConns
	}
	if dto.PrefetchWorkers != 0 {
		cfg.prefetchWorkers = dto.PrefetchWorkers
	}
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}
	if dto.LogFile != "" {
		cfg.logFile = dto.LogFile
	}
	if dto.LogMaxSizeMB != 0 {
		cfg.logMaxSizeMB = dto.LogMaxSizeMB
	}
	if dto.LogMaxBackups != 0 {
		cfg.logMaxBackups = dto.LogMaxBackups
	}

	return cfg.Build()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DATACACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv alone does not feed Unmarshal; every key needs a binding
	for _, key := range dtoKeys {
		_ = v.BindEnv(key)
	}
	return v
}

func unmarshalDTO(v *viper.Viper) (configDTO, error) {
	dto := configDTO{}
	err := v.Unmarshal(&dto,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)),
		func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true },
	)
	if err != nil {
		return configDTO{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	return dto, nil
}

// WithConfigFile builds a Config from a file, with DATACACHE_* environment
// variables overriding file values and defaults filling the rest.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
		}
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	dto, err := unmarshalDTO(v)
	if err != nil {
		return Config{}, err
	}

	return newConfigFromDTO(dto)
}

// FromEnvironment builds a Config from DATACACHE_* environment variables
// alone, for deployments that carry no config file.
func FromEnvironment() (Config, error) {
	dto, err := unmarshalDTO(newViper())
	if err != nil {
		return Config{}, err
	}
	return newConfigFromDTO(dto)
}

// WithDefault creates a new Config with default values for all fields.
func WithDefault() *Config {
	defaultConfig := Config{
		allowedSchemes:         []string{"http", "https"},
		deniedHosts:            nil,
		cacheDir:               defaultCacheDir(),
		namespace:              "datacache/v1",
		hashAlgo:               string(hashutil.HashAlgoBLAKE3),
		digestLen:              32,
		lockWaitTimeout:        5 * time.Minute,
		lockPollInterval:       25 * time.Millisecond,
		lockStaleAfter:         2 * time.Minute,
		timeout:                30 * time.Second,
		userAgent:              "datacache/1.0",
		maxAttempt:             3,
		backoffInitialDuration: 500 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		jitter:                 100 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		csvSeparator:           ",",
		csvHasHeader:           true,
		listenAddr:             ":8080",
		maxConns:               256,
		prefetchWorkers:        4,
		logLevel:               "info",
		logFile:                "",
		logMaxSizeMB:           100,
		logMaxBackups:          3,
	}
	return &defaultConfig
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".datacache"
	}
	return filepath.Join(base, "datacache")
}

func (c *Config) WithAllowedSchemes(schemes []string) *Config {
	c.allowedSchemes = schemes
	return c
}

func (c *Config) WithDeniedHosts(hosts []string) *Config {
	c.deniedHosts = hosts
	return c
}

func (c *Config) WithCacheDir(dir string) *Config {
	c.cacheDir = dir
	return c
}

func (c *Config) WithNamespace(namespace string) *Config {
	c.namespace = namespace
	return c
}

func (c *Config) WithHashAlgo(algo string) *Config {
	c.hashAlgo = algo
	return c
}

func (c *Config) WithDigestLen(length int) *Config {
	c.digestLen = length
	return c
}

func (c *Config) WithLockWaitTimeout(timeout time.Duration) *Config {
	c.lockWaitTimeout = timeout
	return c
}

func (c *Config) WithLockPollInterval(interval time.Duration) *Config {
	c.lockPollInterval = interval
	return c
}

func (c *Config) WithLockStaleAfter(age time.Duration) *Config {
	c.lockStaleAfter = age
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithCsvSeparator(separator string) *Config {
	c.csvSeparator = separator
	return c
}

func (c *Config) WithCsvHasHeader(hasHeader bool) *Config {
	c.csvHasHeader = hasHeader
	return c
}

func (c *Config) WithListenAddr(addr string) *Config {
	c.listenAddr = addr
	return c
}

func (c *Config) WithMaxConns(conns int) *Config {
	c.maxConns = conns
	return c
}

func (c *Config) WithPrefetchWorkers(workers int) *Config {
	c.prefetchWorkers = workers
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithLogFile(path string) *Config {
	c.logFile = path
	return c
}

func (c *Config) WithLogMaxSizeMB(size int) *Config {
	c.logMaxSizeMB = size
	return c
}

func (c *Config) WithLogMaxBackups(backups int) *Config {
	c.logMaxBackups = backups
	return c
}

func (c *Config) Build() (Config, error) {
	if len(c.allowedSchemes) == 0 {
		return Config{}, fmt.Errorf("%w: allowedSchemes cannot be empty", ErrInvalidConfig)
	}
	if c.cacheDir == "" {
		return Config{}, fmt.Errorf("%w: cacheDir cannot be empty", ErrInvalidConfig)
	}
	if c.namespace == "" {
		return Config{}, fmt.Errorf("%w: namespace cannot be empty", ErrInvalidConfig)
	}
	if _, err := hashutil.ParseHashAlgo(c.hashAlgo); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if c.digestLen < 1 || c.digestLen > 64 {
		return Config{}, fmt.Errorf("%w: digestLen must be between 1 and 64, got %d", ErrInvalidConfig, c.digestLen)
	}
	if c.timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, c.timeout)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1, got %d", ErrInvalidConfig, c.maxAttempt)
	}
	if c.backoffMultiplier < 1 {
		return Config{}, fmt.Errorf("%w: backoffMultiplier must be at least 1, got %f", ErrInvalidConfig, c.backoffMultiplier)
	}
	if c.lockWaitTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: lockWaitTimeout must be positive, got %v", ErrInvalidConfig, c.lockWaitTimeout)
	}
	if c.lockPollInterval <= 0 {
		return Config{}, fmt.Errorf("%w: lockPollInterval must be positive, got %v", ErrInvalidConfig, c.lockPollInterval)
	}
	if c.lockStaleAfter < 0 {
		return Config{}, fmt.Errorf("%w: lockStaleAfter cannot be negative, got %v", ErrInvalidConfig, c.lockStaleAfter)
	}
	if utf8.RuneCountInString(c.csvSeparator) != 1 {
		return Config{}, fmt.Errorf("%w: csvSeparator must be a single character, got %q", ErrInvalidConfig, c.csvSeparator)
	}
	if c.listenAddr == "" {
		return Config{}, fmt.Errorf("%w: listenAddr cannot be empty", ErrInvalidConfig)
	}
	if c.maxConns < 1 {
		return Config{}, fmt.Errorf("%w: maxConns must be at least 1, got %d", ErrInvalidConfig, c.maxConns)
	}
	if c.prefetchWorkers < 1 {
		return Config{}, fmt.Errorf("%w: prefetchWorkers must be at least 1, got %d", ErrInvalidConfig, c.prefetchWorkers)
	}
	if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	// A lock must outlive the longest legitimate fetch, or a slow download
	// gets reclaimed under its holder
	if c.lockStaleAfter > 0 {
		c.lockStaleAfter = timeutil.MaxDuration([]time.Duration{
			c.lockStaleAfter,
			4 * c.timeout,
		})
	}

	return *c, nil
}

func (c Config) AllowedSchemes() []string {
	schemes := make([]string, len(c.allowedSchemes))
	copy(schemes, c.allowedSchemes)
	return schemes
}

func (c Config) DeniedHosts() []string {
	hosts := make([]string, len(c.deniedHosts))
	copy(hosts, c.deniedHosts)
	return hosts
}

func (c Config) CacheDir() string {
	return c.cacheDir
}

func (c Config) Namespace() string {
	return c.namespace
}

func (c Config) HashAlgo() string {
	return c.hashAlgo
}

// HashAlgoParsed returns the algorithm Build verified to be supported.
func (c Config) HashAlgoParsed() hashutil.HashAlgo {
	algo, _ := hashutil.ParseHashAlgo(c.hashAlgo)
	return algo
}

func (c Config) DigestLen() int {
	return c.digestLen
}

func (c Config) LockWaitTimeout() time.Duration {
	return c.lockWaitTimeout
}

func (c Config) LockPollInterval() time.Duration {
	return c.lockPollInterval
}

func (c Config) LockStaleAfter() time.Duration {
	return c.lockStaleAfter
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) CsvSeparator() string {
	return c.csvSeparator
}

// CsvSeparatorRune returns the separator as the single rune Build verified
// it to be.
func (c Config) CsvSeparatorRune() rune {
	r, _ := utf8.DecodeRuneInString(c.csvSeparator)
	return r
}

func (c Config) CsvHasHeader() bool {
	return c.csvHasHeader
}

func (c Config) ListenAddr() string {
	return c.listenAddr
}

func (c Config) MaxConns() int {
	return c.maxConns
}

func (c Config) PrefetchWorkers() int {
	return c.prefetchWorkers
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) LogFile() string {
	return c.logFile
}

func (c Config) LogMaxSizeMB() int {
	return c.logMaxSizeMB
}

func (c Config) LogMaxBackups() int {
	return c.logMaxBackups
}
