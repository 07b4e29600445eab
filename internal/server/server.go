package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ahakem/bluemind-members-sub000/internal/config"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/invoice"
	"github.com/ahakem/bluemind-members-sub000/internal/ledger"
	"github.com/ahakem/bluemind-members-sub000/internal/notification"
	"github.com/ahakem/bluemind-members-sub000/internal/routes"
)

// Services are the domain services shared by the API and the job runner.
type Services struct {
	Ledger   *ledger.Service
	Invoices *invoice.Service
}

// LedgerPolicy converts the ledger settings into a service policy.
func LedgerPolicy(c config.LedgerConfig) ledger.Policy {
	return ledger.Policy{
		MaxAttempts:                c.MaxAttempts,
		BaseBackoff:                c.BaseBackoff,
		MaxBackoff:                 c.MaxBackoff,
		AllowNegativeMemberBalance: c.AllowNegativeMemberBalance,
		AllowNegativeClubBalance:   c.AllowNegativeClubBalance,
	}
}

// NewServices builds the ledger and invoice services over store. Payment
// notifications go to Redis when cache is set and to the log otherwise.
func NewServices(cfg config.Config, store docstore.Store, cache *redis.Client, logger *slog.Logger) Services {
	var notifier notification.Notifier = notification.NewLoggerNotifier(logger)
	if cache != nil {
		notifier = notification.NewRedisNotifier(cache, cfg.NotificationChannel)
	}
	ledgerSvc := ledger.NewService(store, LedgerPolicy(cfg.Ledger), logger, ledger.WithNotifier(notifier))
	return Services{
		Ledger:   ledgerSvc,
		Invoices: invoice.NewService(store, ledgerSvc.RetryPolicy(), logger),
	}
}

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, store docstore.Store, cache *redis.Client, services Services, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: routes.ErrorHandler(logger),
	})

	err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		Store:    store,
		Cache:    cache,
		Logger:   logger,
		Ledger:   services.Ledger,
		Invoices: services.Invoices,
		Verifier: identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Beneficiary: invoice.Beneficiary{
			Name: cfg.Club.Name,
			IBAN: cfg.Club.IBAN,
			BIC:  cfg.Club.BIC,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
