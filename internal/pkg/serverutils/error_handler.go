package serverutils

import (
	"github.com/gofiber/fiber/v2"

	"rizal-chat-be/internal/pkg/apperrors"
)

// ErrorHandlerMiddleware translates the error taxonomy into HTTP statuses.
// Raw storage or transport errors never reach the client; they surface as a
// generic 500 with the detail kept server-side.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if e, ok := err.(*fiber.Error); ok {
			fiberErr = e
		}
		if fiberErr != nil {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		status := fiber.StatusInternalServerError
		message := "internal server error"

		switch apperrors.KindOf(err) {
		case apperrors.KindValidation:
			status = fiber.StatusBadRequest
			message = err.Error()
		case apperrors.KindNotFound:
			status = fiber.StatusNotFound
			message = err.Error()
		case apperrors.KindGateway:
			status = fiber.StatusBadGateway
			message = "failed to get a response from the completion service"
		case apperrors.KindConfiguration:
			status = fiber.StatusInternalServerError
			message = "completion service is not configured"
		}

		return ctx.Status(status).JSON(ErrorResponse(status, message))
	}
}
