package handlers

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	errors.ErrCodeValidation:        fiber.StatusBadRequest,
	errors.ErrCodeUnauthorized:      fiber.StatusUnauthorized,
	errors.ErrCodeNotOwner:          fiber.StatusForbidden,
	errors.ErrCodeNotParticipant:    fiber.StatusForbidden,
	errors.ErrCodeNotFound:          fiber.StatusNotFound,
	errors.ErrCodeMatchNotFound:     fiber.StatusNotFound,
	errors.ErrCodeAlreadyQueued:     fiber.StatusConflict,
	errors.ErrCodeNotWaiting:        fiber.StatusConflict,
	errors.ErrCodeAlreadyResolved:   fiber.StatusConflict,
	errors.ErrCodeConflict:          fiber.StatusConflict,
	errors.ErrCodeNotEligible:       fiber.StatusConflict,
	errors.ErrCodeWrongServer:       fiber.StatusConflict,
	errors.ErrCodeAcceptanceExpired: fiber.StatusGone,
	errors.ErrCodeTimeoutNotReached: fiber.StatusTooEarly,
	errors.ErrCodeRateLimitExceeded: fiber.StatusTooManyRequests,
	errors.ErrCodeInternalError:     fiber.StatusInternalServerError,
}

// ErrorHandler renders every error as {"error": {"code", "message"}}.
// Internal errors are logged and answered with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		code := errors.ErrCodeInternalError
		switch fiberErr.Code {
		case fiber.StatusNotFound:
			code = errors.ErrCodeNotFound
		case fiber.StatusBadRequest, fiber.StatusMethodNotAllowed, fiber.StatusUnprocessableEntity:
			code = errors.ErrCodeValidation
		}
		return c.Status(fiberErr.Code).JSON(errorBody{Error: errorDetail{Code: code, Message: fiberErr.Message}})
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.ErrCodeInternalError, "unexpected error")
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	message := appErr.Message
	if status == fiber.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		message = "internal server error"
	}

	return c.Status(status).JSON(errorBody{Error: errorDetail{Code: appErr.Code, Message: message}})
}
