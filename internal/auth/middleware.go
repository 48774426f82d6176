package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/casevault/backend/pkg/models"
)

const advocateKey = "advocate"

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer JWT, loads the advocate it names, and
// injects the row into the context. Missing/invalid/expired tokens and
// unknown advocates are 401; a resolved but inactive advocate is 403.
func RequireAuth(db *gorm.DB, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		tokenStr := strings.TrimPrefix(h, "Bearer ")

		advocateID, err := ParseToken(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		var adv models.Advocate
		if err := db.First(&adv, "id = ?", advocateID).Error; err != nil {
			return fiber.ErrUnauthorized
		}
		if !adv.IsActive {
			return fiber.NewError(fiber.StatusForbidden, "advocate account is inactive")
		}

		c.Locals(advocateKey, &adv)
		return c.Next()
	}
}

// MustAdvocate reads the authenticated advocate from context or panics
// (programming error: handler registered without RequireAuth).
func MustAdvocate(c *fiber.Ctx) *models.Advocate {
	if v := c.Locals(advocateKey); v != nil {
		return v.(*models.Advocate)
	}
	panic(errors.New("advocate not in context"))
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is a global Fiber error handler that returns a consistent JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Defaults
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	// Fiber errors carry status codes
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if strings.TrimSpace(e.Message) != "" {
			msg = e.Message
		} else {
			// Use Fiber's default messages per status code
			msg = fiber.ErrInternalServerError.Message
			switch code {
			case fiber.StatusBadRequest:
				msg = fiber.ErrBadRequest.Message
			case fiber.StatusUnauthorized:
				msg = fiber.ErrUnauthorized.Message
			case fiber.StatusForbidden:
				msg = fiber.ErrForbidden.Message
			case fiber.StatusNotFound:
				msg = fiber.ErrNotFound.Message
			case fiber.StatusConflict:
				msg = fiber.ErrConflict.Message
			}
		}
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Code:    httpCodeToString(code),
		Error:   true,
		Message: msg,
	})
}
