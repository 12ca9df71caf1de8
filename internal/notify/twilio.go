package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/pickleplay/court-reservation/internal/booking"
)

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string // sender number including the whatsapp: prefix
}

// NewTwilioSender builds a sender from account credentials and the
// WhatsApp-enabled sender number.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: whatsappAddr(from)}
}

// Send delivers one message.  Gateway failures are wrapped as
// booking.ErrUpstreamUnavailable so callers can distinguish transport
// trouble from domain errors.
func (s *TwilioSender) Send(ctx context.Context, to, text string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(whatsappAddr(to))
	params.SetFrom(s.from)
	params.SetBody(text)
	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("%w: twilio send to %s: %v", booking.ErrUpstreamUnavailable, to, err)
	}
	return nil
}

// whatsappAddr normalises a handle to Twilio's whatsapp: form.
// Handles arriving from the webhook already carry the prefix;
// operator numbers from configuration usually do not.
func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
