package notification

import (
	"context"
	"log/slog"

	"github.com/idmint/idmint/internal/logging"
)

const (
	// KindOTP carries a one-time passcode to a phone number.
	KindOTP = "otp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a development implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. The body is logged in
// full because this notifier only runs in development.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", logging.RedactPhone(message.Destination)),
		slog.String("body", message.Body),
	)
	return nil
}
