package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/idmint/idmint/internal/chain"
	"github.com/idmint/idmint/internal/config"
	"github.com/idmint/idmint/internal/identity"
	"github.com/idmint/idmint/internal/issuance"
	"github.com/idmint/idmint/internal/metrics"
	"github.com/idmint/idmint/internal/middleware"
	"github.com/idmint/idmint/internal/mint"
	"github.com/idmint/idmint/internal/notification"
	"github.com/idmint/idmint/internal/otp"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Notifier notification.Notifier
	Minter   mint.Minter
	Chain    chain.Reader

	// OTPHashCost overrides the bcrypt cost of stored codes; zero keeps the default.
	OTPHashCost int
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() && d.DB == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Notifier == nil || d.Minter == nil || d.Chain == nil {
		return fmt.Errorf("notifier, minter and chain reader are required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	var m *metrics.Metrics
	if d.Registry != nil {
		m = metrics.New(d.Registry)
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	otpStore, err := newOTPStore(d)
	if err != nil {
		return err
	}

	identitySvc := identity.NewService(identityRepo, d.Logger)
	otpSvc := otp.NewService(otpStore, identityRepo, d.Notifier, otp.Options{
		TTL:      d.Cfg.OTP.TTL,
		HashCost: d.OTPHashCost,
		Metrics:  m,
		Logger:   d.Logger,
	})
	registry := chain.NewRegistry(d.Cfg.Chain.Network, d.Cfg.NetworkContracts())
	orchestrator := issuance.NewOrchestrator(otpSvc, identityRepo, registry, d.Minter, d.Chain, m, d.Logger)

	RegisterHealthRoutes(app, d, registry)
	RegisterMetricsRoute(app, d.Registry)
	RegisterIdentityRoutes(app, identity.NewHandler(identitySvc))
	RegisterOTPRoutes(app, NewOTPHandler(otpSvc, orchestrator), OTPGuards{
		RequestLimit: middleware.PhoneRateLimit(d.Cache, middleware.ScopeOTPRequest, d.Cfg.OTP.RequestsPerHour, d.Logger),
		VerifyLimit:  middleware.PhoneRateLimit(d.Cache, middleware.ScopeOTPVerify, d.Cfg.OTP.VerifyAttemptsPerHour, d.Logger),
		Idempotency:  middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	})

	return nil
}

func newOTPStore(d Deps) (otp.Store, error) {
	switch d.Cfg.OTP.Store {
	case "redis":
		if d.Cache == nil {
			return nil, fmt.Errorf("OTP_STORE=redis requires a redis connection")
		}
		return otp.NewRedisStore(d.Cache), nil
	case "memory":
		return otp.NewMemoryStore(), nil
	case "postgres", "":
		if d.DB != nil {
			return otp.NewPostgresStore(d.DB), nil
		}
		if d.Cfg.IsDev() {
			d.Logger.Warn("no database configured, keeping OTP records in memory")
			return otp.NewMemoryStore(), nil
		}
		return nil, fmt.Errorf("OTP_STORE=postgres requires a database connection")
	default:
		return nil, fmt.Errorf("unknown OTP store %q", d.Cfg.OTP.Store)
	}
}
