package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/internal/cachekey"
	"github.com/rohmanhakim/datacache/internal/dataset"
	"github.com/rohmanhakim/datacache/internal/downloader"
	"github.com/rohmanhakim/datacache/internal/source"
	"github.com/rohmanhakim/datacache/pkg/lockfile"
)

const causeValidation = "validation"

/*
statusForError maps classified errors onto the HTTP status contract:

- rejected references and request shapes -> 400
- files missing at read time             -> 404
- unreadable dataset content             -> 422
- upstream network/protocol failures     -> 502
- upstream timeouts                      -> 504
- storage, locking and everything else   -> 500

The mapping routes on classified causes only; message text never drives it.
*/

func statusForError(err error) (int, string) {
	var resolveErr *source.ResolveError
	if errors.As(err, &resolveErr) {
		return fiber.StatusBadRequest, string(resolveErr.Cause)
	}

	var downloadErr *downloader.DownloadError
	if errors.As(err, &downloadErr) {
		switch downloadErr.Cause {
		case downloader.ErrCauseTimeout:
			return fiber.StatusGatewayTimeout, string(downloadErr.Cause)
		case downloader.ErrCauseTempCreateFailed,
			downloader.ErrCauseWriteFailed,
			downloader.ErrCausePublishFailed:
			return fiber.StatusInternalServerError, string(downloadErr.Cause)
		default:
			return fiber.StatusBadGateway, string(downloadErr.Cause)
		}
	}

	var datasetErr *dataset.DatasetError
	if errors.As(err, &datasetErr) {
		if datasetErr.Cause == dataset.ErrCauseFileMissing {
			return fiber.StatusNotFound, string(datasetErr.Cause)
		}
		return fiber.StatusUnprocessableEntity, string(datasetErr.Cause)
	}

	var storeErr *cache.StoreError
	if errors.As(err, &storeErr) {
		if storeErr.Cause == cache.ErrCauseBadEntryName {
			return fiber.StatusBadRequest, string(storeErr.Cause)
		}
		return fiber.StatusInternalServerError, string(storeErr.Cause)
	}

	var deriveErr *cachekey.DeriveError
	if errors.As(err, &deriveErr) {
		return fiber.StatusInternalServerError, string(deriveErr.Cause)
	}

	var lockErr *lockfile.LockError
	if errors.As(err, &lockErr) {
		return fiber.StatusInternalServerError, string(lockErr.Cause)
	}

	return fiber.StatusInternalServerError, ""
}

func renderError(c fiber.Ctx, err error) error {
	status, cause := statusForError(err)
	return c.Status(status).JSON(errorResponse{
		Error:     err.Error(),
		Cause:     cause,
		RequestID: RequestID(c),
	})
}

func renderBadRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
		Error:     message,
		Cause:     causeValidation,
		RequestID: RequestID(c),
	})
}
