package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/calderadev/doc-convert/internal/config"
	"github.com/calderadev/doc-convert/internal/services"
)

// Handler holds all handler dependencies
type Handler struct {
	cfg  *config.Config
	orch *services.Orchestrator
}

// New creates a new Handler instance
func New(cfg *config.Config, orch *services.Orchestrator) *Handler {
	return &Handler{
		cfg:  cfg,
		orch: orch,
	}
}

// NewErrorHandler builds the Fiber error handler used for errors that
// escape the route handlers (panics recovered by middleware, unknown
// routes). A request body over the server's limit is rejected before any
// handler runs, so the 413 naming the upload ceiling is produced here.
func NewErrorHandler(maxUploadBytes int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}
		if code == fiber.StatusRequestEntityTooLarge {
			message = services.TooLargeMessage(maxUploadBytes)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

// Health responds to liveness probes
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// mapPipelineError translates a pipeline error into an HTTP status and a
// user-facing message. Internal failures keep their diagnostics in the
// server log and return a generic message to the caller.
func mapPipelineError(err error) (int, string) {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		if vErr.Reason == services.ReasonTooLarge {
			return fiber.StatusRequestEntityTooLarge, vErr.Message
		}
		return fiber.StatusBadRequest, vErr.Message
	}

	var qErr *services.QuotaExceededError
	if errors.As(err, &qErr) {
		return fiber.StatusForbidden, qErr.Error()
	}

	var cErr *services.ConverterError
	if errors.As(err, &cErr) {
		log.Printf("Converter failure (%s): %v; process output: %s", cErr.Reason, cErr.Err, cErr.Output)
		return fiber.StatusInternalServerError, "conversion failed"
	}

	log.Printf("Conversion pipeline error: %v", err)
	return fiber.StatusInternalServerError, "failed to process the document"
}
