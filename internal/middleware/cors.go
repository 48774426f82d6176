package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS returns a CORS middleware restricted to the configured origins.
// An empty origins value keeps the permissive default for local development.
func CORS(origins string) fiber.Handler {
	cfg := cors.Config{
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}
	if origins != "" {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
