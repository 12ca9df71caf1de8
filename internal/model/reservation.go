package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	StatusDraft      ReservationStatus = "DRAFT"      // created, awaiting payment
	StatusConfirmed  ReservationStatus = "CONFIRMED"  // paid
	StatusCancelled  ReservationStatus = "CANCELLED"  // cancelled before confirmation
	StatusExpired    ReservationStatus = "EXPIRED"    // draft abandoned past its timer
	StatusSuperseded ReservationStatus = "SUPERSEDED" // replaced by a modification
)

// ActiveStatuses are the states that count toward slot capacity.
var ActiveStatuses = []ReservationStatus{StatusDraft, StatusConfirmed}

// Reservation is the central entity of the system.  A reservation is
// created in DRAFT by the dialogue engine, confirmed by a payment
// (or an explicit "paid" acknowledgement), and expired by the sweeper
// when abandoned.  Rows are never hard-deleted; terminal states are
// retained for audit and payment reconciliation.
//
// Court name and slot window are denormalised at draft time so later
// catalog edits do not retroactively alter a confirmed reservation.
type Reservation struct {
	ID      uint64 // reservations.id
	Code    string // human-facing sequence code, e.g. "R-07"
	Subject string // counterparty WhatsApp handle, e.g. "whatsapp:+9198..."

	CourtID    uint64 // reservations.court_id
	CourtName  string // denormalised court name
	SlotID     uint64 // reservations.slot_id
	SlotWindow string // denormalised window text, e.g. "7:00 AM - 8:00 AM"
	Date       string // YYYY-MM-DD

	PartySize     int    // participants, always within [2,4]
	DurationClass string // "SHORT" or "LONG"
	AmountRupees  int64  // duration-class unit price × party size

	OrderRef    *string // payment-gateway order reference (nullable)
	PaymentRef  *string // payment reference set at confirmation (nullable)
	InvoiceCode *string // year-scoped invoice code, e.g. "INV-2026-0042"

	Status      ReservationStatus
	ConfirmedAt *time.Time

	CheckedIn   bool
	CheckedInAt *time.Time

	// Reminder flags guarantee at-most-once delivery per horizon even
	// when sweep passes overlap their tolerance windows.
	Reminded24h bool
	Reminded1h  bool

	// Modification lineage.  SupersedesID points back at the
	// reservation this one replaced; SupersededByID points forward at
	// the replacement.
	SupersedesID   *uint64
	SupersededByID *uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CountsTowardCapacity reports whether the reservation occupies slot
// capacity; only DRAFT and CONFIRMED do.
func (r *Reservation) CountsTowardCapacity() bool {
	return r.Status == StatusDraft || r.Status == StatusConfirmed
}

// CanBeCancelled reports whether a cancellation is allowed.  Confirmed
// reservations cannot be cancelled in this design; cancellation must
// happen before payment.
func (r *Reservation) CanBeCancelled() bool {
	return r.Status == StatusDraft
}

// IsTerminal reports whether the reservation has left the active part
// of the state machine.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case StatusCancelled, StatusExpired, StatusSuperseded:
		return true
	}
	return false
}
