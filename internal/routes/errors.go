package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/invoice"
	"github.com/ahakem/bluemind-members-sub000/internal/ledger"
	"github.com/ahakem/bluemind-members-sub000/internal/middleware"
)

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrNoActor), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrMemberNotFound), errors.Is(err, invoice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, invoice.ErrInvalidTransition),
		errors.Is(err, ledger.ErrNegativeClubBalance),
		errors.Is(err, ledger.ErrNegativeMemberBalance),
		errors.Is(err, ledger.ErrBalanceOutOfRange):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrRetriesExhausted), errors.Is(err, invoice.ErrNoBeneficiary),
		errors.Is(err, docstore.ErrWatchUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers as JSON. Internal errors
// are logged and their details withheld from the client.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := errorStatus(err)
		message := err.Error()
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			logger.Error("unhandled request error",
				slog.String("request_id", middleware.RequestIDFrom(c)),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
			message = http.StatusText(status)
		}
		if status == http.StatusServiceUnavailable && errors.Is(err, ledger.ErrRetriesExhausted) {
			c.Set(fiber.HeaderRetryAfter, "1")
		}
		body := fiber.Map{"error": message}
		var ve *ledger.ValidationError
		if errors.As(err, &ve) {
			body["field"] = ve.Field
		}
		if id := middleware.RequestIDFrom(c); id != "" {
			body["request_id"] = id
		}
		return c.Status(status).JSON(body)
	}
}
