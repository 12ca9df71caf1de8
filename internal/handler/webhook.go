package handler

import (
	"context"
	"encoding/xml"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pickleplay/court-reservation/internal/dialogue"
)

// WebhookHandler receives inbound WhatsApp messages from Twilio and
// replies with TwiML.  Replying in the webhook response (rather than
// through the REST API) keeps the round trip to a single request.
type WebhookHandler struct {
	Engine *dialogue.Engine
}

func NewWebhookHandler(engine *dialogue.Engine) *WebhookHandler {
	return &WebhookHandler{Engine: engine}
}

// twimlResponse is the minimal TwiML document for a single text reply.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

const apologyText = "Sorry, something went wrong on our side. Please try again in a moment."

// Inbound handles one webhook delivery.  Twilio posts form-encoded
// From and Body fields.  Dialogue failures never bubble up as HTTP
// errors: Twilio would retry the delivery and the user would see
// nothing, so we always answer 200 with either the reply or an
// apology.
func (h *WebhookHandler) Inbound(c echo.Context) error {
	from := strings.TrimSpace(c.FormValue("From"))
	body := c.FormValue("Body")
	if from == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing From"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	reply, err := h.Engine.HandleMessage(ctx, from, body)
	if err != nil {
		log.Printf("webhook: handle message from %s: %v", from, err)
		reply = apologyText
	}

	return c.XML(http.StatusOK, twimlResponse{Message: reply})
}
