package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/idmint/idmint/internal/chain"
)

const healthyMessage = "Connection established successfully."

// RegisterHealthRoutes adds a plain-text health check and a detailed readiness report.
func RegisterHealthRoutes(app *fiber.App, d Deps, contracts *chain.Registry) {
	app.Get("/health", func(c *fiber.Ctx) error {
		db, cache := checkBackends(c.UserContext(), d)
		if db != "ok" || cache != "ok" {
			return c.Status(http.StatusServiceUnavailable).SendString("Connection failed.")
		}
		return c.Status(http.StatusOK).SendString(healthyMessage)
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		db, cache := checkBackends(c.UserContext(), d)
		status := http.StatusOK
		if db != "ok" || cache != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": db, "redis": cache},
			"network":   contracts.Network(),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// checkBackends pings each configured backend; unconfigured ones report "ok".
func checkBackends(parent context.Context, d Deps) (db, cache string) {
	db, cache = "ok", "ok"

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()
	if d.DB != nil {
		if err := d.DB.Ping(ctx); err != nil {
			db = err.Error()
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Ping(ctx).Err(); err != nil {
			cache = err.Error()
		}
	}
	return db, cache
}
