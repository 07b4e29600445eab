package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/ahakem/bluemind-members-sub000/internal/config"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/invoice"
	"github.com/ahakem/bluemind-members-sub000/internal/ledger"
	"github.com/ahakem/bluemind-members-sub000/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg         config.Config
	Store       docstore.Store
	Cache       *redis.Client
	Logger      *slog.Logger
	Ledger      *ledger.Service
	Invoices    *invoice.Service
	Verifier    middleware.TokenVerifier
	Beneficiary invoice.Beneficiary
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Ledger == nil || d.Invoices == nil || d.Verifier == nil {
		return fmt.Errorf("routes: ledger, invoices and verifier are required")
	}
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Everything below acts on club money and needs an authenticated actor.
	protected := api.Group("", middleware.Authenticate(d.Verifier))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterLedgerRoutes(protected, ledger.NewHandler(d.Ledger))
	RegisterInvoiceRoutes(protected, invoice.NewHandler(d.Invoices, d.Beneficiary))

	return nil
}
