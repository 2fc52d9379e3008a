package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/idmint/idmint/internal/logging"
)

// messageCreator is the slice of the Twilio REST API the notifier needs.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioNotifier delivers messages as SMS through Twilio.
type TwilioNotifier struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

// NewTwilioNotifier builds an SMS notifier from account credentials and a sender number.
func NewTwilioNotifier(accountSID, authToken, from string, logger *slog.Logger) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("twilio account sid, auth token and sender are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioNotifier(client.Api, from, logger), nil
}

func newTwilioNotifier(api messageCreator, from string, logger *slog.Logger) *TwilioNotifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TwilioNotifier{api: api, from: from, logger: logger}
}

// Send submits the SMS and waits for Twilio to acknowledge it. The Twilio
// client does not take a context, so cancellation is only checked up front.
func (n *TwilioNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message.Destination == "" {
		return errors.New("destination is required")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(message.Destination)
	params.SetFrom(n.from)
	params.SetBody(message.Body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	n.logger.Info("sms sent",
		slog.String("kind", message.Kind),
		slog.String("destination", logging.RedactPhone(message.Destination)),
		slog.String("sid", sid),
	)
	return nil
}
