package dialogue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
)

// fakeReservations scripts the booking engine for conversation tests.
type fakeReservations struct {
	remaining map[string]int // "courtID|date|window" → capacity left
	createErr error
	confirmErr error

	nextID    uint64
	created   []booking.DraftRequest
	confirmed []uint64
	cancelled []uint64
	bySubject []model.Reservation
}

func capKey(courtID uint64, date, window string) string {
	return fmt.Sprintf("%d|%s|%s", courtID, date, window)
}

func (f *fakeReservations) CreateDraft(_ context.Context, req booking.DraftRequest) (*model.Reservation, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	f.nextID++
	return &model.Reservation{
		ID:         f.nextID,
		Code:       fmt.Sprintf("R-%02d", f.nextID),
		Subject:    req.Subject,
		CourtID:    req.Court.ID,
		CourtName:  req.Court.Name,
		SlotWindow: req.Slot.Window,
		Date:       req.Date,
		PartySize:  req.PartySize,
		AmountRupees: int64(req.PartySize) * 200,
		Status:     model.StatusDraft,
	}, nil
}

func (f *fakeReservations) Confirm(_ context.Context, id uint64, _ string) (*model.Reservation, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmed = append(f.confirmed, id)
	invoice := "INV-2026-0001"
	return &model.Reservation{
		ID: id, Code: fmt.Sprintf("R-%02d", id), Status: model.StatusConfirmed,
		CourtName: "Court 1", Date: "2026-03-11", SlotWindow: "7:00 AM - 8:00 AM",
		AmountRupees: 600, InvoiceCode: &invoice,
	}, nil
}

func (f *fakeReservations) Cancel(_ context.Context, id uint64) (*model.Reservation, error) {
	f.cancelled = append(f.cancelled, id)
	return &model.Reservation{ID: id, Status: model.StatusCancelled}, nil
}

func (f *fakeReservations) Remaining(_ context.Context, courtID uint64, date, window string) (int, error) {
	if left, ok := f.remaining[capKey(courtID, date, window)]; ok {
		return left, nil
	}
	return booking.SlotCapacity, nil
}

func (f *fakeReservations) ListBySubject(_ context.Context, _ string) ([]model.Reservation, error) {
	return f.bySubject, nil
}

type fakeCatalog struct {
	courts []model.Court
	slots  []model.TimeSlot
}

func (f *fakeCatalog) ActiveCourts(_ context.Context) ([]model.Court, error) { return f.courts, nil }
func (f *fakeCatalog) ActiveSlots(_ context.Context) ([]model.TimeSlot, error) { return f.slots, nil }

const subject = "whatsapp:+919876500001"

var engineNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, res *fakeReservations) *Engine {
	t.Helper()
	catalog := &fakeCatalog{
		courts: []model.Court{
			{ID: 1, Name: "Court 1", IsActive: true},
			{ID: 2, Name: "Court 2", IsActive: true},
		},
		slots: []model.TimeSlot{
			{ID: 10, Window: "7:00 AM - 8:00 AM", StartMinute: 7 * 60, EndMinute: 8 * 60, IsActive: true},
			{ID: 11, Window: "6:00 PM - 8:00 PM", StartMinute: 18 * 60, EndMinute: 20 * 60, IsActive: true},
		},
	}
	store := NewSessionStore(DefaultSessionTTL, func() time.Time { return engineNow })
	return NewEngine(store, res, catalog, Config{
		BaseURL:  "https://book.pickleplay.example",
		Prices:   booking.PriceTable{Short: 200, Long: 350},
		Location: time.UTC,
		Now:      func() time.Time { return engineNow },
	})
}

func send(t *testing.T, e *Engine, body string) string {
	t.Helper()
	reply, err := e.HandleMessage(context.Background(), subject, body)
	require.NoError(t, err)
	return reply
}

func TestGreetingShowsMenu(t *testing.T) {
	e := newTestEngine(t, &fakeReservations{})
	reply := send(t, e, "hi")
	assert.Contains(t, reply, "Welcome to PicklePlay")
	assert.Contains(t, reply, "Book Court")
}

func TestUnknownSenderGetsWelcome(t *testing.T) {
	e := newTestEngine(t, &fakeReservations{})
	reply := send(t, e, "whatever")
	assert.Contains(t, reply, "Welcome to PicklePlay")
}

func TestHappyPathThroughPayment(t *testing.T) {
	res := &fakeReservations{}
	e := newTestEngine(t, res)

	send(t, e, "hi")
	reply := send(t, e, "1")
	assert.Contains(t, reply, "Select a booking date")
	assert.Contains(t, reply, "11 Mar")

	reply = send(t, e, "2") // tomorrow
	assert.Contains(t, reply, "How many players?")

	reply = send(t, e, "3")
	assert.Contains(t, reply, "Available time slots")
	assert.Contains(t, reply, "7:00 AM - 8:00 AM")

	reply = send(t, e, "1")
	assert.Contains(t, reply, "Available courts")
	assert.Contains(t, reply, "Court 1")
	assert.Contains(t, reply, "₹200/player")

	reply = send(t, e, "1")
	assert.Contains(t, reply, "Booking Summary")
	assert.Contains(t, reply, "Players: 3")
	assert.Contains(t, reply, "₹600")

	reply = send(t, e, "confirm")
	require.Len(t, res.created, 1)
	req := res.created[0]
	assert.Equal(t, subject, req.Subject)
	assert.Equal(t, "2026-03-11", req.Date)
	assert.Equal(t, 3, req.PartySize)
	assert.Equal(t, uint64(1), req.Court.ID)
	assert.Contains(t, reply, "Payment link: https://book.pickleplay.example/payment?reservation=1")
	assert.Contains(t, reply, "Reply 'paid'")

	reply = send(t, e, "paid")
	assert.Equal(t, []uint64{1}, res.confirmed)
	assert.Contains(t, reply, "Booking Confirmed")
	assert.Contains(t, reply, "INV-2026-0001")

	// Session ended; the next message starts fresh.
	reply = send(t, e, "anything")
	assert.Contains(t, reply, "Welcome to PicklePlay")
}

func TestLongSlotPricedAtLongRate(t *testing.T) {
	e := newTestEngine(t, &fakeReservations{})
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	send(t, e, "2")        // 2 players
	reply := send(t, e, "2") // the 6-8 PM slot
	assert.Contains(t, reply, "₹350/player")
	reply = send(t, e, "1")
	assert.Contains(t, reply, "Amount: ₹700")
}

func TestInvalidInputsReprompt(t *testing.T) {
	res := &fakeReservations{}
	e := newTestEngine(t, res)
	send(t, e, "hi")

	reply := send(t, e, "9")
	assert.Contains(t, reply, "Invalid selection")

	send(t, e, "1")
	reply = send(t, e, "99")
	assert.Contains(t, reply, "Invalid date selection")

	send(t, e, "2")
	reply = send(t, e, "7")
	assert.Contains(t, reply, "between 2 and 4")
	reply = send(t, e, "abc")
	assert.Contains(t, reply, "between 2 and 4")

	send(t, e, "2")
	reply = send(t, e, "0")
	assert.Contains(t, reply, "Invalid slot")

	assert.Empty(t, res.created, "no draft may exist before confirm_summary")
}

func TestBackCommands(t *testing.T) {
	e := newTestEngine(t, &fakeReservations{})
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")

	reply := send(t, e, "back") // from choose_party_size
	assert.Contains(t, reply, "Select a booking date")

	send(t, e, "2")
	send(t, e, "2")
	reply = send(t, e, "back") // from choose_slot
	assert.Contains(t, reply, "How many players?")

	send(t, e, "2")
	send(t, e, "1")
	reply = send(t, e, "back") // from choose_court
	assert.Contains(t, reply, "Available time slots")
}

func TestMenuResetsFromAnyStage(t *testing.T) {
	e := newTestEngine(t, &fakeReservations{})
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	reply := send(t, e, "menu")
	assert.Contains(t, reply, "Book Court")
	reply = send(t, e, "1")
	assert.Contains(t, reply, "Select a booking date")
}

func TestCapacityFiltersMenus(t *testing.T) {
	res := &fakeReservations{remaining: map[string]int{
		capKey(1, "2026-03-11", "7:00 AM - 8:00 AM"): 1,
		capKey(2, "2026-03-11", "7:00 AM - 8:00 AM"): 2,
	}}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")

	// A party of 3 cannot fit the morning slot on either court, so the
	// slot itself disappears from the menu.
	reply := send(t, e, "3")
	assert.NotContains(t, reply, "7:00 AM - 8:00 AM")
	assert.Contains(t, reply, "6:00 PM - 8:00 PM")
}

func TestCourtMenuFiltersFullCourts(t *testing.T) {
	res := &fakeReservations{remaining: map[string]int{
		capKey(1, "2026-03-11", "7:00 AM - 8:00 AM"): 1,
	}}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	send(t, e, "2")
	reply := send(t, e, "1")
	assert.NotContains(t, reply, "Court 1", "court without room for the party is hidden")
	assert.Contains(t, reply, "Court 2")
}

func TestSameDayCutoffHidesSlots(t *testing.T) {
	e := newTestEngine(t, &fakeReservations{})
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "1") // today, 10:00; the 7 AM slot is past, 6 PM is fine
	reply := send(t, e, "2")
	assert.NotContains(t, reply, "7:00 AM - 8:00 AM")
	assert.Contains(t, reply, "6:00 PM - 8:00 PM")
}

func TestCreateDraftCapacityFailureSurfaced(t *testing.T) {
	res := &fakeReservations{createErr: booking.ErrCapacityExceeded}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	send(t, e, "2")
	send(t, e, "1")
	send(t, e, "1")
	reply := send(t, e, "confirm")
	assert.Contains(t, reply, "filled up")

	// Back at choose_slot: a slot number is accepted again.
	res.createErr = nil
	reply = send(t, e, "1")
	assert.Contains(t, reply, "Available courts")
}

func TestCreateDraftSlotClosedSurfaced(t *testing.T) {
	res := &fakeReservations{createErr: booking.ErrSlotClosed}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	send(t, e, "2")
	send(t, e, "1")
	send(t, e, "1")
	reply := send(t, e, "confirm")
	assert.Contains(t, reply, "no longer open")
	assert.Contains(t, reply, "Select a booking date")
}

func TestPaymentPendingExpiredDraft(t *testing.T) {
	res := &fakeReservations{}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	send(t, e, "2")
	send(t, e, "1")
	send(t, e, "1")
	send(t, e, "confirm")

	res.confirmErr = booking.ErrInvalidTransition
	reply := send(t, e, "paid")
	assert.Contains(t, reply, "expired")
}

func TestPaymentPendingCancel(t *testing.T) {
	res := &fakeReservations{}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "1")
	send(t, e, "2")
	send(t, e, "2")
	send(t, e, "1")
	send(t, e, "1")
	send(t, e, "confirm")

	reply := send(t, e, "cancel")
	assert.Equal(t, []uint64{1}, res.cancelled)
	assert.Contains(t, reply, "cancelled")
}

func TestMyBookings(t *testing.T) {
	res := &fakeReservations{bySubject: []model.Reservation{
		{Code: "R-03", Date: "2026-03-11", SlotWindow: "7:00 AM - 8:00 AM",
			CourtName: "Court 1", PartySize: 3, Status: model.StatusConfirmed},
	}}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	reply := send(t, e, "2")
	assert.Contains(t, reply, "R-03")
	assert.Contains(t, reply, "CONFIRMED")

	res.bySubject = nil
	reply = send(t, e, "2")
	assert.Contains(t, reply, "no bookings")
}

func TestAvailabilityBrowse(t *testing.T) {
	res := &fakeReservations{remaining: map[string]int{
		capKey(1, "2026-03-11", "7:00 AM - 8:00 AM"): 1,
		capKey(2, "2026-03-11", "7:00 AM - 8:00 AM"): 0,
	}}
	e := newTestEngine(t, res)
	send(t, e, "hi")
	send(t, e, "3")
	reply := send(t, e, "2")
	assert.Contains(t, reply, "7:00 AM - 8:00 AM: 1 spots open")

	reply = send(t, e, "book")
	assert.Contains(t, reply, "Select a booking date")
}

func TestSessionIdleEviction(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewSessionStore(30*time.Minute, clock)

	store.Reset("a")
	_, ok := store.Get("a")
	assert.True(t, ok)

	now = now.Add(31 * time.Minute)
	_, ok = store.Get("a")
	assert.False(t, ok, "idle session past the TTL is gone")

	store.Reset("a")
	store.Reset("b")
	now = now.Add(31 * time.Minute)
	store.Reset("c")
	assert.Equal(t, 2, store.Purge())
	assert.Equal(t, 1, store.Len())
}
