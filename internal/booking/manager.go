package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pickleplay/court-reservation/internal/model"
)

// Store is the durable record of reservations.  Implementations must
// make Transition an atomic read-modify-write: the mutate callback
// runs against the current row while it is locked, and the row is
// only written when the current status is in the from set.  On a
// status mismatch Transition returns ErrInvalidTransition; on an
// unknown id it returns ErrNotFound.
type Store interface {
	CapacityReader
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByCode(ctx context.Context, code string) (*model.Reservation, error)
	Transition(ctx context.Context, id uint64, from []model.ReservationStatus, mutate func(*model.Reservation)) (*model.Reservation, error)
	ListBySubject(ctx context.Context, subject string) ([]model.Reservation, error)
}

// Counters allocates monotonically increasing sequence numbers per
// namespace.  Allocation must be atomic so concurrent drafts never
// derive the same code from a stale read.
type Counters interface {
	Next(ctx context.Context, namespace string) (uint64, error)
}

// Notifier delivers human-facing notification intents.  Delivery is
// fire-and-forget from the engine's perspective: implementations log
// failures and never report them back, so a failed send cannot roll
// back a completed state transition.
type Notifier interface {
	NotifySubject(ctx context.Context, subject, text string)
	NotifyOperators(ctx context.Context, text string)
}

// EventPublisher propagates confirmed reservations to the message
// broker for downstream consumers (audit log, analytics).
type EventPublisher interface {
	PublishConfirmed(ctx context.Context, res *model.Reservation) error
}

// DraftRequest carries everything the dialogue engine collected for a
// new reservation.  Court and Slot are full catalog rows so the
// manager can denormalise names and classify the window without
// re-reading the catalog.
type DraftRequest struct {
	Subject   string
	Court     model.Court
	Slot      model.TimeSlot
	Date      string
	PartySize int
}

// ManagerConfig tunes the lifecycle manager.  Zero values fall back
// to production defaults.
type ManagerConfig struct {
	Prices   PriceTable
	DraftTTL time.Duration    // auto-expiry delay for unpaid drafts
	Now      func() time.Time // injectable clock
}

const (
	defaultDraftTTL = 5 * time.Minute

	reservationCounter = "reservation"
)

// Manager orchestrates reservation state transitions.  Capacity
// checks are serialised per (court, date, window) with a keyed mutex,
// which closes the read-then-write race inside one process; the
// confirm-time re-check remains the compensating guard across
// processes.
type Manager struct {
	store    Store
	counters Counters
	notifier Notifier
	events   EventPublisher

	prices   PriceTable
	draftTTL time.Duration
	now      func() time.Time

	mu        sync.Mutex
	slotLocks map[slotKey]*sync.Mutex
	timers    map[uint64]*time.Timer
}

type slotKey struct {
	courtID uint64
	date    string
	window  string
}

// NewManager wires a Manager.  notifier and events may be nil in
// tests; store and counters must not be.
func NewManager(store Store, counters Counters, notifier Notifier, events EventPublisher, cfg ManagerConfig) *Manager {
	if store == nil || counters == nil {
		panic("nil store or counters passed to NewManager")
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = defaultDraftTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:     store,
		counters:  counters,
		notifier:  notifier,
		events:    events,
		prices:    cfg.Prices,
		draftTTL:  cfg.DraftTTL,
		now:       cfg.Now,
		slotLocks: make(map[slotKey]*sync.Mutex),
		timers:    make(map[uint64]*time.Timer),
	}
}

// lockSlot serialises capacity-sensitive sections per slot key and
// returns the unlock function.
func (m *Manager) lockSlot(k slotKey) func() {
	m.mu.Lock()
	l, ok := m.slotLocks[k]
	if !ok {
		l = &sync.Mutex{}
		m.slotLocks[k] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateDraft validates a reservation request, allocates its code and
// persists it in DRAFT.  It fails with ErrInvalidPartySize,
// ErrSlotClosed or ErrCapacityExceeded without creating any record.
// A 5-minute auto-expiry timer is armed for the new draft; the sweep
// is the durable fallback should the process restart.
func (m *Manager) CreateDraft(ctx context.Context, req DraftRequest) (*model.Reservation, error) {
	return m.createDraft(ctx, req, 0, nil)
}

func (m *Manager) createDraft(ctx context.Context, req DraftRequest, excludeID uint64, supersedes *uint64) (*model.Reservation, error) {
	if req.PartySize < MinPartySize || req.PartySize > MaxPartySize {
		return nil, ErrInvalidPartySize
	}
	now := m.now()
	if !IsBookable(req.Slot.Window, req.Date, now) {
		return nil, ErrSlotClosed
	}

	unlock := m.lockSlot(slotKey{req.Court.ID, req.Date, req.Slot.Window})
	defer unlock()

	used, err := m.store.SumParticipants(ctx, req.Court.ID, req.Date, req.Slot.Window, excludeID)
	if err != nil {
		return nil, err
	}
	if used+req.PartySize > SlotCapacity {
		return nil, ErrCapacityExceeded
	}

	class := ClassOf(req.Slot.StartMinute, req.Slot.EndMinute)
	seq, err := m.counters.Next(ctx, reservationCounter)
	if err != nil {
		return nil, err
	}

	res := &model.Reservation{
		Code:          fmt.Sprintf("R-%02d", seq),
		Subject:       req.Subject,
		CourtID:       req.Court.ID,
		CourtName:     req.Court.Name,
		SlotID:        req.Slot.ID,
		SlotWindow:    req.Slot.Window,
		Date:          req.Date,
		PartySize:     req.PartySize,
		DurationClass: string(class),
		AmountRupees:  m.prices.ForClass(class) * int64(req.PartySize),
		Status:        model.StatusDraft,
		SupersedesID:  supersedes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.Create(ctx, res); err != nil {
		return nil, err
	}
	m.armExpiry(res.ID)
	return res, nil
}

// Confirm moves a draft to CONFIRMED after payment.  Capacity and
// bookability are re-validated at confirmation time: other drafts may
// have consumed the slot while this one sat unpaid.  When the slot no
// longer fits, the draft is transitioned to CANCELLED and
// ErrCapacityExceeded (or ErrSlotClosed) is reported instead of
// silently confirming over capacity.
func (m *Manager) Confirm(ctx context.Context, id uint64, paymentRef string) (*model.Reservation, error) {
	res, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusDraft {
		return res, ErrInvalidTransition
	}

	unlock := m.lockSlot(slotKey{res.CourtID, res.Date, res.SlotWindow})
	defer unlock()

	now := m.now()
	if !IsBookable(res.SlotWindow, res.Date, now) {
		if cancelled, terr := m.store.Transition(ctx, id,
			[]model.ReservationStatus{model.StatusDraft},
			func(r *model.Reservation) { r.Status = model.StatusCancelled }); terr == nil {
			res = cancelled
		}
		m.disarmExpiry(id)
		return res, ErrSlotClosed
	}
	others, err := m.store.SumParticipants(ctx, res.CourtID, res.Date, res.SlotWindow, id)
	if err != nil {
		return nil, err
	}
	if others+res.PartySize > SlotCapacity {
		if cancelled, terr := m.store.Transition(ctx, id,
			[]model.ReservationStatus{model.StatusDraft},
			func(r *model.Reservation) { r.Status = model.StatusCancelled }); terr == nil {
			res = cancelled
		}
		m.disarmExpiry(id)
		return res, ErrCapacityExceeded
	}

	invoice, err := m.nextInvoiceCode(ctx, now)
	if err != nil {
		return nil, err
	}
	confirmed, err := m.store.Transition(ctx, id,
		[]model.ReservationStatus{model.StatusDraft},
		func(r *model.Reservation) {
			r.Status = model.StatusConfirmed
			r.ConfirmedAt = &now
			if paymentRef != "" {
				r.PaymentRef = &paymentRef
			}
			r.InvoiceCode = &invoice
		})
	if err != nil {
		return nil, err
	}
	m.disarmExpiry(id)

	m.notifySubject(ctx, confirmed.Subject, confirmationText(confirmed))
	m.notifyOperators(ctx, fmt.Sprintf(
		"New confirmed booking %s: %s, %s, %s, %d players, ₹%d.",
		confirmed.Code, confirmed.CourtName, confirmed.Date, confirmed.SlotWindow,
		confirmed.PartySize, confirmed.AmountRupees))
	if m.events != nil {
		if err := m.events.PublishConfirmed(ctx, confirmed); err != nil {
			log.Printf("booking: publish confirmed event for %s: %v", confirmed.Code, err)
		}
	}
	return confirmed, nil
}

// AttachOrder records the payment-gateway order reference on a draft
// so the asynchronous webhook can be reconciled against it.  Only
// drafts carry order refs; anything else is ErrInvalidTransition.
func (m *Manager) AttachOrder(ctx context.Context, id uint64, orderRef string) (*model.Reservation, error) {
	return m.store.Transition(ctx, id,
		[]model.ReservationStatus{model.StatusDraft},
		func(r *model.Reservation) { r.OrderRef = &orderRef })
}

// Cancel cancels a draft at the subject's or an operator's request.
// Cancelling a confirmed reservation is rejected with
// ErrInvalidTransition: in this design cancellation must happen
// before payment.
func (m *Manager) Cancel(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.CanBeCancelled() {
		return res, ErrInvalidTransition
	}
	cancelled, err := m.store.Transition(ctx, id,
		[]model.ReservationStatus{model.StatusDraft},
		func(r *model.Reservation) { r.Status = model.StatusCancelled })
	if err != nil {
		return nil, err
	}
	m.disarmExpiry(id)
	m.notifySubject(ctx, cancelled.Subject, fmt.Sprintf(
		"*Booking Cancelled*\n\nBooking %s for %s on %s has been cancelled.",
		cancelled.Code, cancelled.CourtName, cancelled.Date))
	return cancelled, nil
}

// ExpireDraft expires a single draft.  It is idempotent: expiring a
// reservation that already left DRAFT is a no-op.
func (m *Manager) ExpireDraft(ctx context.Context, id uint64) error {
	_, err := m.store.Transition(ctx, id,
		[]model.ReservationStatus{model.StatusDraft},
		func(r *model.Reservation) { r.Status = model.StatusExpired })
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
		return nil
	}
	if err == nil {
		m.disarmExpiry(id)
	}
	return err
}

// CheckIn flags a confirmed reservation as arrived.  Allowed only
// once and only from CONFIRMED; a second attempt fails with
// ErrAlreadyCheckedIn.
func (m *Manager) CheckIn(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusConfirmed {
		return res, ErrInvalidTransition
	}
	if res.CheckedIn {
		return res, ErrAlreadyCheckedIn
	}
	now := m.now()
	checked, err := m.store.Transition(ctx, id,
		[]model.ReservationStatus{model.StatusConfirmed},
		func(r *model.Reservation) {
			if r.CheckedIn {
				return
			}
			r.CheckedIn = true
			r.CheckedInAt = &now
		})
	if err != nil {
		return nil, err
	}
	if !checked.CheckedIn || checked.CheckedInAt == nil || !checked.CheckedInAt.Equal(now) {
		// Lost the race against another check-in attempt.
		return checked, ErrAlreadyCheckedIn
	}
	m.notifyOperators(ctx, fmt.Sprintf(
		"*Player Check-In*\n\nBooking %s (%s) checked in for %s %s.",
		checked.Code, checked.Subject, checked.Date, checked.SlotWindow))
	return checked, nil
}

// Modify replaces a reservation with a new draft carrying changed
// parameters.  The original transitions to SUPERSEDED with a forward
// lineage pointer and its capacity is released immediately; the new
// draft records a back-reference and goes through the normal payment
// flow.  Commercial fields are re-derived, never mutated in place.
func (m *Manager) Modify(ctx context.Context, id uint64, req DraftRequest) (*model.Reservation, error) {
	orig, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.Status != model.StatusDraft && orig.Status != model.StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	if req.Subject == "" {
		req.Subject = orig.Subject
	}

	// The original still occupies capacity until it is superseded, so
	// exclude it from the availability check for the replacement.
	replacement, err := m.createDraft(ctx, req, orig.ID, &orig.ID)
	if err != nil {
		return nil, err
	}
	_, err = m.store.Transition(ctx, orig.ID,
		[]model.ReservationStatus{model.StatusDraft, model.StatusConfirmed},
		func(r *model.Reservation) {
			r.Status = model.StatusSuperseded
			r.SupersededByID = &replacement.ID
		})
	if err != nil {
		// Compensate: the original changed state underneath us, so the
		// replacement draft must not stand.
		_, _ = m.store.Transition(ctx, replacement.ID,
			[]model.ReservationStatus{model.StatusDraft},
			func(r *model.Reservation) { r.Status = model.StatusCancelled })
		m.disarmExpiry(replacement.ID)
		return nil, err
	}
	m.disarmExpiry(orig.ID)
	return replacement, nil
}

// Remaining exposes the capacity calculator for menu filtering.
func (m *Manager) Remaining(ctx context.Context, courtID uint64, date, window string) (int, error) {
	return RemainingCapacity(ctx, m.store, courtID, date, window)
}

// Get returns a reservation by id.
func (m *Manager) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return m.store.GetByID(ctx, id)
}

// GetByCode returns a reservation by its human-facing code.
func (m *Manager) GetByCode(ctx context.Context, code string) (*model.Reservation, error) {
	return m.store.GetByCode(ctx, code)
}

// ListBySubject returns all reservations for a counterparty, newest
// first.
func (m *Manager) ListBySubject(ctx context.Context, subject string) ([]model.Reservation, error) {
	return m.store.ListBySubject(ctx, subject)
}

// Stop disarms all pending draft timers.  Used on shutdown; the sweep
// picks up whatever the timers would have expired.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) nextInvoiceCode(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	seq, err := m.counters.Next(ctx, fmt.Sprintf("invoice-%d", year))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d-%04d", year, seq), nil
}

// armExpiry schedules the advisory in-process auto-expiry timer for a
// draft.  Best-effort only: a restart loses the timer and the sweep
// expires the draft on its next pass.
func (m *Manager) armExpiry(id uint64) {
	t := time.AfterFunc(m.draftTTL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.ExpireDraft(ctx, id); err != nil {
			log.Printf("booking: auto-expire draft %d: %v", id, err)
		}
	})
	m.mu.Lock()
	m.timers[id] = t
	m.mu.Unlock()
}

func (m *Manager) disarmExpiry(id uint64) {
	m.mu.Lock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()
}

func (m *Manager) notifySubject(ctx context.Context, subject, text string) {
	if m.notifier != nil {
		m.notifier.NotifySubject(ctx, subject, text)
	}
}

func (m *Manager) notifyOperators(ctx context.Context, text string) {
	if m.notifier != nil {
		m.notifier.NotifyOperators(ctx, text)
	}
}

func confirmationText(r *model.Reservation) string {
	invoice := ""
	if r.InvoiceCode != nil {
		invoice = "\nInvoice: " + *r.InvoiceCode
	}
	return fmt.Sprintf(
		"*Booking Confirmed!*\n\nBooking: %s\nDate: %s\nTime: %s\nCourt: %s\nPlayers: %d\nAmount: ₹%d%s\n\nSee you on court. Reply 'menu' for the main menu.",
		r.Code, r.Date, r.SlotWindow, r.CourtName, r.PartySize, r.AmountRupees, invoice)
}
