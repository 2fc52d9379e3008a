package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/idmint/idmint/internal/config"
	"github.com/idmint/idmint/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      deps.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(deps.Cfg),
		ErrorHandler: routes.ErrorHandler(deps.Logger),
	})

	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: deps.Cfg}, nil
}

// writeTimeout leaves room for a full mint plus the chain read-back so the
// connection outlives the slowest successful /verifyOTP.
func writeTimeout(cfg config.Config) time.Duration {
	d := cfg.Mint.Timeout + cfg.Chain.CallTimeout + 30*time.Second
	if d < 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
