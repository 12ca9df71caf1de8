package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
	"github.com/pickleplay/court-reservation/internal/payment"
)

// PaymentHandler serves the payment page data and the gateway
// callbacks.  The synchronous path is order -> checkout -> verify;
// the asynchronous webhook is the safety net for clients that paid
// but never came back to the page.
type PaymentHandler struct {
	Manager       *booking.Manager
	Gateway       *payment.Gateway
	WebhookSecret string
}

func NewPaymentHandler(m *booking.Manager, g *payment.Gateway, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{Manager: m, Gateway: g, WebhookSecret: webhookSecret}
}

func reservationID(c echo.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	return id, err == nil && id > 0
}

// Show returns the reservation the payment page is about to charge.
func (h *PaymentHandler) Show(c echo.Context) error {
	id, ok := reservationID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Manager.Get(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// CreateOrder registers a gateway order for a draft and records the
// order reference so the webhook can be reconciled later.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	id, ok := reservationID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Manager.Get(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	if res.Status != model.StatusDraft {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not awaiting payment"})
	}

	order, err := h.Gateway.CreateOrder(ctx, res)
	if err != nil {
		return bookingError(c, err)
	}
	if _, err := h.Manager.AttachOrder(ctx, id, order.OrderID); err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation": viewOf(res),
		"order":       order,
	})
}

type verifyReq struct {
	ReservationID uint64 `json:"reservation_id"`
	OrderID       string `json:"razorpay_order_id"`
	PaymentID     string `json:"razorpay_payment_id"`
	Signature     string `json:"razorpay_signature"`
}

// Verify is the synchronous callback from the checkout page.  A valid
// signature confirms the reservation with the payment id as its
// reference.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ReservationID == 0 || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing payment fields"})
	}
	if !h.Gateway.VerifyPayment(req.OrderID, req.PaymentID, req.Signature) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment signature"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	confirmed, err := h.Manager.Confirm(ctx, req.ReservationID, req.PaymentID)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(confirmed))
}

// Webhook is the asynchronous gateway notification.  It always
// answers 200 for deliveries we understand, including duplicates for
// reservations that already confirmed through the synchronous path;
// any non-2xx would make the gateway retry forever.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	if h.WebhookSecret != "" {
		sig := c.Request().Header.Get("X-Razorpay-Signature")
		if !h.Gateway.VerifyWebhook(body, sig, h.WebhookSecret) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook signature"})
		}
	}

	id, paymentRef, ok := payment.ParseWebhook(body)
	if !ok {
		// Not a payment capture we care about; acknowledge and move on.
		return c.NoContent(http.StatusOK)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Manager.Confirm(ctx, id, paymentRef); err != nil {
		switch {
		case isDuplicateConfirm(err):
			return c.NoContent(http.StatusOK)
		default:
			log.Printf("payment: webhook confirm reservation %d: %v", id, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm failed"})
		}
	}
	return c.NoContent(http.StatusOK)
}

// isDuplicateConfirm treats a reservation that already left DRAFT as
// a duplicate delivery rather than a failure.
func isDuplicateConfirm(err error) bool {
	return errors.Is(err, booking.ErrInvalidTransition) || errors.Is(err, booking.ErrNotFound)
}

// Receipt returns the invoice data for a confirmed reservation.
func (h *PaymentHandler) Receipt(c echo.Context) error {
	id, ok := reservationID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Manager.Get(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	if res.Status != model.StatusConfirmed || res.InvoiceCode == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation has no invoice"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"invoice_code": *res.InvoiceCode,
		"reservation":  viewOf(res),
		"amount":       res.AmountRupees,
		"currency":     "INR",
	})
}
