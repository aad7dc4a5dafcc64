package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// StatusMapper lets a feature map its own sentinel errors to HTTP codes.
type StatusMapper func(err error) (int, bool)

// ErrorHandlerMiddleware turns handler errors into the ErrorResponse envelope.
func ErrorHandlerMiddleware(mappers ...StatusMapper) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fiberErr *fiber.Error
		var validationErr *ValidationError
		switch {
		case errors.As(err, &fiberErr):
			code, message = fiberErr.Code, fiberErr.Message
		case errors.As(err, &validationErr):
			code, message = fiber.StatusBadRequest, validationErr.Error()
		default:
			for _, m := range mappers {
				if c, ok := m(err); ok {
					code, message = c, err.Error()
					break
				}
			}
		}

		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
