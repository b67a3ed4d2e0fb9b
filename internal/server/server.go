package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/rohmanhakim/datacache/internal/build"
	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/internal/config"
	"github.com/rohmanhakim/datacache/internal/dataset"
)

/*
Responsibilities:
- Expose cache fetches, CSV previews and store administration over HTTP
- Tag every request with a uuid and log one line per request
- Map classified errors onto the status contract in errors.go
- Cap concurrently accepted connections at the listener

Collaborators:
- cache.Cache performs every fetch; the server never touches the
  cache directory on its own
- dataset.Load verifies and slices published entries
*/

// AppOptions controls how the Fiber application is assembled. Cache and
// Config are required; the zero Logger discards nothing and is fine for
// tests.
type AppOptions struct {
	Logger zerolog.Logger
	Cache  *cache.Cache
	Config config.Config
}

const contextKeyRequestID = "_datacache_request_id"

// Rows returned by head/tail when the request leaves the count unset.
const defaultSliceRows = 5

// NewApp builds the Fiber application with request-ID middleware and the
// route table. It does not bind a port; pair it with Listen.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	app.Get("/healthz", handleHealth)
	app.Post("/data/load", handleDataLoad(opts))
	app.Post("/data/head", handleDataSlice(opts, takeHead))
	app.Post("/data/tail", handleDataSlice(opts, takeTail))
	app.Get("/cache/entries", handleListEntries(opts))
	app.Delete("/cache/entries", handleClearEntries(opts))
	app.Delete("/cache/entries/:name", handleInvalidateEntry(opts))

	return app, nil
}

// Listen serves the app on the configured address with an upper bound on
// concurrently accepted connections.
func Listen(app *fiber.App, cfg config.Config) error {
	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr(), err)
	}
	return app.Listener(netutil.LimitListener(ln, cfg.MaxConns()))
}

// requestContextMiddleware generates the request ID and emits the
// per-request log line once the handler chain finishes.
func requestContextMiddleware(logger zerolog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		logger.Info().
			Str("request_id", reqID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")

		return err
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func handleHealth(c fiber.Ctx) error {
	return c.JSON(healthResponse{Status: "ok", Version: build.FullVersion()})
}

func handleDataLoad(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req loadRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return renderBadRequest(c, "malformed request body: "+err.Error())
		}
		if req.Source == "" {
			return renderBadRequest(c, "source is required")
		}

		result, getErr := opts.Cache.GetOrFetch(requestContext(c), req.Source, cache.NewGetParam(req.ForceRefresh))
		if getErr != nil {
			return renderError(c, getErr)
		}

		table, loadErr := dataset.Load(result.LocalPath(), datasetParam(opts.Config, "", nil))
		if loadErr != nil {
			return renderError(c, loadErr)
		}

		return c.JSON(loadResponse{
			Source:    req.Source,
			LocalPath: result.LocalPath(),
			WasCached: result.WasCached(),
			Columns:   table.Columns(),
			Rows:      table.RowCount(),
		})
	}
}

type sliceFunc func(dataset.Table, int) dataset.Table

func takeHead(table dataset.Table, n int) dataset.Table { return table.Head(n) }
func takeTail(table dataset.Table, n int) dataset.Table { return table.Tail(n) }

func handleDataSlice(opts AppOptions, slice sliceFunc) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req sliceRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return renderBadRequest(c, "malformed request body: "+err.Error())
		}
		if req.Source == "" {
			return renderBadRequest(c, "source is required")
		}
		if req.Rows < 0 {
			return renderBadRequest(c, "rows cannot be negative")
		}
		if req.Separator != "" && utf8.RuneCountInString(req.Separator) != 1 {
			return renderBadRequest(c, "separator must be a single character")
		}
		rows := req.Rows
		if rows == 0 {
			rows = defaultSliceRows
		}

		result, getErr := opts.Cache.GetOrFetch(requestContext(c), req.Source, cache.NewGetParam(req.ForceRefresh))
		if getErr != nil {
			return renderError(c, getErr)
		}

		table, loadErr := dataset.Load(result.LocalPath(), datasetParam(opts.Config, req.Separator, req.HasHeader))
		if loadErr != nil {
			return renderError(c, loadErr)
		}

		sliced := slice(table, rows)
		tableRows, tableCols := table.Shape()

		return c.JSON(sliceResponse{
			Source:    req.Source,
			LocalPath: result.LocalPath(),
			WasCached: result.WasCached(),
			Columns:   sliced.Columns(),
			Records:   sliced.Rows(),
			Shape:     shapePayload{Rows: tableRows, Columns: tableCols},
		})
	}
}

func handleListEntries(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		entries, err := opts.Cache.Store().Entries()
		if err != nil {
			return renderError(c, err)
		}

		payload := make([]entryPayload, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, entryPayload{
				Name:      entry.Name(),
				SizeBytes: entry.SizeBytes(),
				ModTime:   entry.ModTime(),
			})
		}
		return c.JSON(entriesResponse{Entries: payload, Count: len(payload)})
	}
}

func handleClearEntries(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		removed, err := opts.Cache.Store().Clear()
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(clearResponse{Removed: removed})
	}
}

func handleInvalidateEntry(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		name := c.Params("name")
		if err := opts.Cache.Store().InvalidateName(name); err != nil {
			return renderError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// datasetParam merges per-request CSV overrides onto the configured
// defaults. Callers validate the separator before passing it in.
func datasetParam(cfg config.Config, separator string, hasHeader *bool) dataset.LoadParam {
	sep := cfg.CsvSeparatorRune()
	if separator != "" {
		r, _ := utf8.DecodeRuneInString(separator)
		sep = r
	}

	header := cfg.CsvHasHeader()
	if hasHeader != nil {
		header = *hasHeader
	}

	return dataset.NewLoadParam(sep, header, nil)
}
