// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published when a reservation is
// successfully confirmed.  It carries enough for downstream consumers
// to log, reconcile payments or drive analytics without querying the
// primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	Code          string `json:"code"`
	Subject       string `json:"subject"`
	CourtID       uint64 `json:"court_id"`
	CourtName     string `json:"court_name"`
	Date          string `json:"date"`
	SlotWindow    string `json:"slot_window"`
	PartySize     int    `json:"party_size"`
	DurationClass string `json:"duration_class"`
	AmountRupees  int64  `json:"amount_rupees"`
	InvoiceCode   string `json:"invoice_code"`
	PaymentRef    string `json:"payment_ref"`
	ConfirmedAt   string `json:"confirmed_at"`
}
