package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterMetricsRoute exposes reg in the Prometheus text format. Nothing is
// mounted when reg is nil.
func RegisterMetricsRoute(app *fiber.App, reg *prometheus.Registry) {
	if reg == nil {
		return
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}
