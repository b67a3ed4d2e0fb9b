package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/internal/config"
	"github.com/rohmanhakim/datacache/internal/logging"
	"github.com/rohmanhakim/datacache/internal/metadata"
)

var (
	cfgFile  string
	cacheDir string
	logLevel string
	logFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datacache",
	Short: "A concurrency-safe local cache for remote data files.",
	Long: `datacache downloads remote files once and serves every later request
for the same resource from a local cache directory. Concurrent requests
for one resource collapse into a single download guarded by a
cross-process lock file, and finished downloads are published atomically,
so readers never observe a partial file.

Cached CSV files can be previewed directly (head, tail), and the same
cache is available to other processes over HTTP (serve).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Persistent flags apply to every subcommand; they override both the
	// config file and DATACACHE_* environment variables.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (e.g., /etc/datacache/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (defaults to the user cache dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
}

// InitConfigWithError assembles the effective configuration: the config
// file (or the environment) provides the base, then every flag that was
// set overrides it. Returning the error makes it easier to test failure
// cases.
func InitConfigWithError() (config.Config, error) {
	var base config.Config

	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		base = cfg
	} else {
		cfg, err := config.FromEnvironment()
		if err != nil {
			return config.Config{}, err
		}
		base = cfg
	}

	builder := &base

	if cacheDir != "" {
		builder = builder.WithCacheDir(cacheDir)
	}
	if logLevel != "" {
		builder = builder.WithLogLevel(logLevel)
	}
	if logFile != "" {
		builder = builder.WithLogFile(logFile)
	}

	// Subcommand flags, zero-valued unless their command set them
	if fetchTimeout > 0 {
		builder = builder.WithTimeout(fetchTimeout)
	}
	if fetchJobs > 0 {
		builder = builder.WithPrefetchWorkers(fetchJobs)
	}
	if datasetSep != "" {
		builder = builder.WithCsvSeparator(datasetSep)
	}
	if datasetNoHeader {
		builder = builder.WithCsvHasHeader(false)
	}

	return builder.Build()
}

// newFacade wires the cache facade the way every subcommand uses it: the
// full parameter set from the built config, observations to the logger.
func newFacade(cfg config.Config, logger zerolog.Logger) cache.Cache {
	sink := metadata.NewZerologSink(logger)
	return cache.NewCache(cache.ParamFromConfig(cfg), &sink)
}

// setupLogging builds the logger the subcommands share. Log lines go to
// stderr (or the configured file), keeping stdout clean for results.
func setupLogging(cfg config.Config) zerolog.Logger {
	return logging.Setup(cfg)
}

func ResetFlags() {
	cfgFile = ""
	cacheDir = ""
	logLevel = ""
	logFile = ""
	fetchRefresh = false
	fetchJobs = 0
	fetchTimeout = 0
	datasetRows = 0
	datasetSep = ""
	datasetNoHeader = false
	serveHost = ""
	servePort = 0
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetCacheDirForTest(dir string) {
	cacheDir = dir
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

func SetLogFileForTest(path string) {
	logFile = path
}

func SetFetchTimeoutForTest(timeout time.Duration) {
	fetchTimeout = timeout
}

func SetFetchJobsForTest(jobs int) {
	fetchJobs = jobs
}

func SetDatasetSepForTest(sep string) {
	datasetSep = sep
}

func SetDatasetNoHeaderForTest(noHeader bool) {
	datasetNoHeader = noHeader
}
