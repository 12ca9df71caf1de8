// Package payment wraps the Razorpay SDK behind the narrow gateway
// surface the handlers consume: order creation, client-side signature
// verification and webhook payload parsing.  Signature cryptography is
// delegated entirely to the SDK.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	razorpay "github.com/razorpay/razorpay-go"
	razorpayutils "github.com/razorpay/razorpay-go/utils"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
)

// Order is the slice of a gateway order the payment page needs.
type Order struct {
	OrderID     string `json:"order_id"`
	Currency    string `json:"currency"`
	AmountPaise int64  `json:"amount"` // smallest currency unit
	Key         string `json:"key"`    // public key for the checkout widget
}

// Gateway talks to Razorpay.
type Gateway struct {
	client *razorpay.Client
	keyID  string
	secret string
}

// NewGateway builds a Gateway from API credentials.
func NewGateway(keyID, keySecret string) *Gateway {
	return &Gateway{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
		secret: keySecret,
	}
}

// CreateOrder registers a gateway order for a reservation.  The
// reservation id travels in the order notes so the asynchronous
// webhook can find its way back.  Gateway failures surface as
// booking.ErrUpstreamUnavailable: a user who cannot get an order
// cannot pay at all, so this path is never swallowed.
func (g *Gateway) CreateOrder(_ context.Context, res *model.Reservation) (*Order, error) {
	data := map[string]interface{}{
		"amount":   res.AmountRupees * 100, // rupees to paise
		"currency": "INR",
		"receipt":  "booking_" + res.Code,
		"notes": map[string]interface{}{
			"reservation_id": strconv.FormatUint(res.ID, 10),
			"code":           res.Code,
			"date":           res.Date,
			"slot":           res.SlotWindow,
			"court":          res.CourtName,
		},
	}
	created, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: razorpay order for %s: %v", booking.ErrUpstreamUnavailable, res.Code, err)
	}
	orderID, _ := created["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("%w: razorpay order for %s: empty order id", booking.ErrUpstreamUnavailable, res.Code)
	}
	return &Order{
		OrderID:     orderID,
		Currency:    "INR",
		AmountPaise: res.AmountRupees * 100,
		Key:         g.keyID,
	}, nil
}

// VerifyPayment checks the checkout callback signature through the
// SDK.  Returns false on any mismatch; the caller must not confirm
// the reservation in that case.
func (g *Gateway) VerifyPayment(orderID, paymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return razorpayutils.VerifyPaymentSignature(params, signature, g.secret)
}

// VerifyWebhook checks a webhook body against its signature header.
func (g *Gateway) VerifyWebhook(body []byte, signature, webhookSecret string) bool {
	return razorpayutils.VerifyWebhookSignature(string(body), signature, webhookSecret)
}

// WebhookEvent is the part of Razorpay's webhook payload the engine
// consumes: the payment entity and the reservation id planted in the
// order notes at creation time.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID     string            `json:"id"`
				Notes  map[string]string `json:"notes"`
				Status string            `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook decodes a webhook body and extracts the reservation id
// and payment reference.  A payload without a reservation id in its
// notes is not ours and reports ok=false.
func ParseWebhook(body []byte) (reservationID uint64, paymentRef string, ok bool) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return 0, "", false
	}
	entity := ev.Payload.Payment.Entity
	raw := entity.Notes["reservation_id"]
	if raw == "" {
		return 0, "", false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, entity.ID, true
}
