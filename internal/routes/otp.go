package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/identity"
	"github.com/idmint/idmint/internal/issuance"
	"github.com/idmint/idmint/internal/otp"
)

const otpSentMessage = "OTP sent successfully."

// OTPHandler serves the OTP request and verification endpoints.
type OTPHandler struct {
	otps     *otp.Service
	issuance *issuance.Orchestrator
}

// NewOTPHandler binds the OTP service and issuance workflow to HTTP.
func NewOTPHandler(otps *otp.Service, orchestrator *issuance.Orchestrator) *OTPHandler {
	return &OTPHandler{otps: otps, issuance: orchestrator}
}

type sendSMSRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	IDType      string `json:"id_type"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
	IDType      string `json:"id_type"`
}

// OTPGuards are the per-route middlewares of the OTP endpoints.
type OTPGuards struct {
	RequestLimit fiber.Handler
	VerifyLimit  fiber.Handler
	Idempotency  fiber.Handler
}

// RegisterOTPRoutes wires OTP request and verification. Verification is
// throttled per phone before the idempotency check so replays under fresh
// keys still count against the guess budget.
func RegisterOTPRoutes(r fiber.Router, h *OTPHandler, g OTPGuards) {
	r.Post("/sendSMS", g.RequestLimit, h.sendSMS)
	r.Post("/verifyOTP", g.VerifyLimit, g.Idempotency, h.verifyOTP)
}

func (h *OTPHandler) sendSMS(c *fiber.Ctx) error {
	var req sendSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "invalid request body", err)
	}
	category, err := identity.ParseCategory(req.IDType)
	if err != nil {
		return err
	}
	if err := h.otps.Request(c.UserContext(), category, req.PhoneNumber, req.Address); err != nil {
		return err
	}
	return c.Status(http.StatusOK).SendString(otpSentMessage)
}

func (h *OTPHandler) verifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "invalid request body", err)
	}
	category, err := identity.ParseCategory(req.IDType)
	if err != nil {
		return err
	}
	res, err := h.issuance.Issue(c.UserContext(), category, req.PhoneNumber, req.OTP)
	if errors.Is(err, otp.ErrNoCode) {
		// Answer like a mismatch so callers cannot tell which phones hold codes.
		return apperr.Wrap(apperr.ErrInvalidCode, "Invalid OTP", err)
	}
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}
