package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/idmint/idmint/internal/identity"
)

// RegisterIdentityRoutes wires the per-category registration endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/createUser", h.Register(identity.CategoryStandard))
	r.Post("/createSSAUser", h.Register(identity.CategorySSA))
}
