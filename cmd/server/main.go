// @title           CaseVault API
// @version         1.0
// @description     Backend for advocate case management: clients, cases, document storage with signed URLs, and external court-record lookups.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"

	"github.com/casevault/backend/internal/advocates"
	"github.com/casevault/backend/internal/auth"
	"github.com/casevault/backend/internal/cases"
	"github.com/casevault/backend/internal/clients"
	"github.com/casevault/backend/internal/config"
	"github.com/casevault/backend/internal/courtapi"
	"github.com/casevault/backend/internal/documents"
	"github.com/casevault/backend/internal/logging"
	"github.com/casevault/backend/internal/middleware"
	"github.com/casevault/backend/internal/storage"
	"github.com/casevault/backend/pkg/database"
	"github.com/casevault/backend/pkg/models"
)

func main() {
	_ = godotenv.Load()
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, err := database.Init(cfg.DSN())
	if err != nil {
		log.Fatal("database:", err)
	}
	if err := db.AutoMigrate(
		&models.Advocate{}, &models.Client{}, &models.Case{}, &models.Document{}, &models.CaseHistory{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			slog.Warn("sentry init failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	app := fiber.New(fiber.Config{
		AppName:      "casevault",
		BodyLimit:    30 * 1024 * 1024,
		ErrorHandler: auth.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.SentryDSN != "" {
		app.Use(sentryfiber.New(sentryfiber.Options{Repanic: true}))
	}

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")
	protected := auth.RequireAuth(db, cfg.JWTSecret)

	// Auth
	authH := auth.NewHandler(db, cfg)
	api.Post("/auth/token", authH.Token)

	// Advocates
	advH := advocates.NewHandler(db)
	api.Post("/advocates", advH.Create)
	api.Get("/advocates/me", protected, advH.Me)
	api.Put("/advocates/me", protected, advH.UpdateMe)

	// Clients
	clientH := clients.NewHandler(db)
	api.Post("/clients", protected, clientH.Create)
	api.Get("/clients", protected, clientH.List)
	api.Get("/clients/:id", protected, clientH.Get)
	api.Put("/clients/:id", protected, clientH.Update)

	// Cases
	court := courtapi.New(cfg.CourtAPIBaseURL, cfg.CourtAPIKey)
	caseH := cases.NewHandler(db, court)
	api.Post("/cases", protected, caseH.Create)
	api.Get("/cases", protected, caseH.List)
	api.Post("/cases/fetch-court-details", protected, caseH.FetchCourtDetails)
	api.Get("/cases/:id", protected, caseH.Get)
	api.Put("/cases/:id", protected, caseH.Update)

	// Documents
	store := storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
	docH := documents.NewHandler(db, store)
	api.Post("/documents/upload", protected, docH.Upload)
	api.Get("/documents/case/:caseID", protected, docH.ListByCase)
	api.Get("/documents/:id", protected, docH.Get)
	api.Get("/documents/:id/download", protected, docH.Download)
	api.Get("/documents/:id/content", protected, docH.Content)
	api.Delete("/documents/:id", protected, docH.Delete)

	slog.Info("server listening", "port", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
