package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/datacache/internal/config"
	"github.com/rohmanhakim/datacache/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP.",
	Long: `serve runs the HTTP API on the configured listen address. The API
exposes the same fetch, preview and eviction operations as the CLI, maps
classified errors onto HTTP status codes, and tags every request with an
X-Request-ID header.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "interface to bind (defaults to the configured listen address)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to bind (defaults to the configured listen address)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	if serveHost != "" || servePort > 0 {
		cfg, err = overrideListenAddr(cfg, serveHost, servePort)
		if err != nil {
			return err
		}
	}

	logger := setupLogging(cfg)
	facade := newFacade(cfg, logger)

	app, appErr := server.NewApp(server.AppOptions{
		Logger: logger,
		Cache:  &facade,
		Config: cfg,
	})
	if appErr != nil {
		return appErr
	}

	logger.Info().
		Str("addr", cfg.ListenAddr()).
		Str("cache_dir", cfg.CacheDir()).
		Msg("serving cache API")
	return server.Listen(app, cfg)
}

// overrideListenAddr replaces only the halves of the configured listen
// address that the flags actually set.
func overrideListenAddr(cfg config.Config, host string, port int) (config.Config, error) {
	baseHost, basePort, err := net.SplitHostPort(cfg.ListenAddr())
	if err != nil {
		return config.Config{}, fmt.Errorf("configured listen address %q: %w", cfg.ListenAddr(), err)
	}
	if host != "" {
		baseHost = host
	}
	if port > 0 {
		basePort = strconv.Itoa(port)
	}
	builder := &cfg
	return builder.WithListenAddr(net.JoinHostPort(baseHost, basePort)).Build()
}
