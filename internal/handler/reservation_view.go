package handler

import (
	"time"

	"github.com/pickleplay/court-reservation/internal/model"
)

// reservationView is the JSON shape of a reservation across the
// payment and admin APIs.
type reservationView struct {
	ID            uint64     `json:"id"`
	Code          string     `json:"code"`
	Subject       string     `json:"subject"`
	Court         string     `json:"court"`
	Date          string     `json:"date"`
	SlotWindow    string     `json:"slot_window"`
	PartySize     int        `json:"party_size"`
	DurationClass string     `json:"duration_class"`
	AmountRupees  int64      `json:"amount_rupees"`
	Status        string     `json:"status"`
	OrderRef      *string    `json:"order_ref,omitempty"`
	PaymentRef    *string    `json:"payment_ref,omitempty"`
	InvoiceCode   *string    `json:"invoice_code,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CheckedIn     bool       `json:"checked_in"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func viewOf(r *model.Reservation) reservationView {
	return reservationView{
		ID:            r.ID,
		Code:          r.Code,
		Subject:       r.Subject,
		Court:         r.CourtName,
		Date:          r.Date,
		SlotWindow:    r.SlotWindow,
		PartySize:     r.PartySize,
		DurationClass: r.DurationClass,
		AmountRupees:  r.AmountRupees,
		Status:        string(r.Status),
		OrderRef:      r.OrderRef,
		PaymentRef:    r.PaymentRef,
		InvoiceCode:   r.InvoiceCode,
		ConfirmedAt:   r.ConfirmedAt,
		CheckedIn:     r.CheckedIn,
		CheckedInAt:   r.CheckedInAt,
		CreatedAt:     r.CreatedAt,
	}
}
