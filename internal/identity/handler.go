package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/idmint/idmint/internal/apperr"
)

// Handler exposes identity registration endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	IDType      string `json:"idType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	PhoneNumber string `json:"phoneNumber"`
}

var createdMessages = map[Category]string{
	CategoryStandard: "User created successfully.",
	CategorySSA:      "SSA user created successfully.",
}

// Register returns the onboarding handler for one category.
func (h *Handler) Register(category Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Wrap(apperr.ErrInvalidInput, "invalid request body", err)
		}
		_, err := h.service.Register(c.UserContext(), category, RegisterInput{
			Phone:       req.PhoneNumber,
			IDType:      req.IDType,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			DateOfBirth: req.DateOfBirth,
		})
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).SendString(createdMessages[category])
	}
}
