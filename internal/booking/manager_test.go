package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickleplay/court-reservation/internal/model"
)

// memStore is an in-memory Store used by the engine tests.  It
// mirrors the repository contract: Transition is an atomic
// read-modify-write guarded by a mutex, and all reads return copies.
type memStore struct {
	mu   sync.Mutex
	seq  uint64
	rows map[uint64]*model.Reservation
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uint64]*model.Reservation)}
}

func (s *memStore) Create(_ context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	res.ID = s.seq
	cp := *res
	s.rows[res.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetByCode(_ context.Context, code string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Code == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) Transition(_ context.Context, id uint64, from []model.ReservationStatus, mutate func(*model.Reservation)) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if r.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}
	mutate(r)
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (s *memStore) SumParticipants(_ context.Context, courtID uint64, date, window string, excludeID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := 0
	for _, r := range s.rows {
		if r.ID == excludeID {
			continue
		}
		if r.CourtID == courtID && r.Date == date && r.SlotWindow == window && r.CountsTowardCapacity() {
			sum += r.PartySize
		}
	}
	return sum, nil
}

func (s *memStore) ListBySubject(_ context.Context, subject string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.rows {
		if r.Subject == subject {
			out = append(out, *r)
		}
	}
	return out, nil
}

// memCounters allocates namespaced sequences atomically.
type memCounters struct {
	mu   sync.Mutex
	vals map[string]uint64
}

func newMemCounters() *memCounters { return &memCounters{vals: make(map[string]uint64)} }

func (c *memCounters) Next(_ context.Context, ns string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[ns]++
	return c.vals[ns], nil
}

// recordingNotifier captures notification intents for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	toSubject []string
	toOps     []string
}

func (n *recordingNotifier) NotifySubject(_ context.Context, _, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toSubject = append(n.toSubject, text)
}

func (n *recordingNotifier) NotifyOperators(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toOps = append(n.toOps, text)
}

var (
	court1 = model.Court{ID: 1, Name: "Court 1", IsActive: true}
	slot7  = model.TimeSlot{ID: 10, Window: "7:00 AM - 8:00 AM", StartMinute: 7 * 60, EndMinute: 8 * 60, IsActive: true}
	slot9  = model.TimeSlot{ID: 11, Window: "9:00 AM - 11:00 AM", StartMinute: 9 * 60, EndMinute: 11 * 60, IsActive: true}
)

// fixedNow is 10:00 on 2026-03-10; "tomorrow" below is relative to it.
var fixedNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

const tomorrow = "2026-03-11"

func newTestManager(t *testing.T) (*Manager, *memStore, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	notifier := &recordingNotifier{}
	m := NewManager(store, newMemCounters(), notifier, nil, ManagerConfig{
		Prices:   PriceTable{Short: 200, Long: 350},
		DraftTTL: time.Hour, // keep timers inert unless a test wants them
		Now:      func() time.Time { return fixedNow },
	})
	t.Cleanup(m.Stop)
	return m, store, notifier
}

func draftReq(party int) DraftRequest {
	return DraftRequest{Subject: "whatsapp:+919876500001", Court: court1, Slot: slot7, Date: tomorrow, PartySize: party}
}

func TestCreateDraftPartySizeBounds(t *testing.T) {
	m, store, _ := newTestManager(t)
	for _, size := range []int{-1, 0, 1, 5, 12} {
		_, err := m.CreateDraft(context.Background(), draftReq(size))
		assert.ErrorIs(t, err, ErrInvalidPartySize, "size %d", size)
	}
	assert.Empty(t, store.rows, "no record may be created on validation failure")
}

func TestCreateDraftComputesPriceAndCapacity(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	// Scenario A: 3 players on a short slot at ₹200/head.
	res, err := m.CreateDraft(ctx, draftReq(3))
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, res.Status)
	assert.Equal(t, "R-01", res.Code)
	assert.Equal(t, string(ClassShort), res.DurationClass)
	assert.Equal(t, int64(600), res.AmountRupees)
	assert.Equal(t, "Court 1", res.CourtName)
	assert.Equal(t, slot7.Window, res.SlotWindow)

	left, err := m.Remaining(ctx, court1.ID, tomorrow, slot7.Window)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	// Scenario B: only one seat left, a party of two no longer fits.
	_, err = m.CreateDraft(ctx, draftReq(2))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	left, err = m.Remaining(ctx, court1.ID, tomorrow, slot7.Window)
	require.NoError(t, err)
	assert.Equal(t, 1, left, "a rejected draft must not consume capacity")
}

func TestCreateDraftLongClassPrice(t *testing.T) {
	m, _, _ := newTestManager(t)
	res, err := m.CreateDraft(context.Background(), DraftRequest{
		Subject: "whatsapp:+919876500002", Court: court1, Slot: slot9, Date: tomorrow, PartySize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, string(ClassLong), res.DurationClass)
	assert.Equal(t, int64(700), res.AmountRupees)
}

func TestCreateDraftSlotClosed(t *testing.T) {
	m, _, _ := newTestManager(t)
	req := draftReq(2)
	req.Date = "2026-03-10" // today; slot starts 07:00, now is 10:00
	_, err := m.CreateDraft(context.Background(), req)
	assert.ErrorIs(t, err, ErrSlotClosed)
}

func TestConfirmSetsPaymentFields(t *testing.T) {
	m, _, notifier := newTestManager(t)
	ctx := context.Background()
	res, err := m.CreateDraft(ctx, draftReq(3))
	require.NoError(t, err)

	// Scenario C: confirm before the timer fires.
	confirmed, err := m.Confirm(ctx, res.ID, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, fixedNow, *confirmed.ConfirmedAt)
	require.NotNil(t, confirmed.PaymentRef)
	assert.Equal(t, "pay_123", *confirmed.PaymentRef)
	require.NotNil(t, confirmed.InvoiceCode)
	assert.Equal(t, "INV-2026-0001", *confirmed.InvoiceCode)
	assert.False(t, confirmed.Reminded24h)
	assert.False(t, confirmed.Reminded1h)

	assert.Len(t, notifier.toSubject, 1, "subject gets a confirmation notice")
	assert.Len(t, notifier.toOps, 1, "operators get a confirmation notice")
}

func TestConfirmRecheckCancelsOverCapacity(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.CreateDraft(ctx, draftReq(3))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, a.ID, "pay_a")
	require.NoError(t, err)

	// Simulate a racing process that slipped a second draft past the
	// creation-time check before A was confirmed.
	b := &model.Reservation{
		Code: "R-99", Subject: "whatsapp:+919876500003",
		CourtID: court1.ID, CourtName: court1.Name,
		SlotID: slot7.ID, SlotWindow: slot7.Window, Date: tomorrow,
		PartySize: 3, DurationClass: string(ClassShort), AmountRupees: 600,
		Status: model.StatusDraft,
	}
	require.NoError(t, store.Create(ctx, b))

	_, err = m.Confirm(ctx, b.ID, "pay_b")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	got, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status, "over-capacity draft is cancelled, not confirmed")
}

func TestFullSlotAfterTwoConfirmations(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	// Scenario E: two confirmed parties filling the slot exactly.
	a, err := m.CreateDraft(ctx, draftReq(2))
	require.NoError(t, err)
	req := draftReq(2)
	req.Subject = "whatsapp:+919876500004"
	b, err := m.CreateDraft(ctx, req)
	require.NoError(t, err)
	_, err = m.Confirm(ctx, a.ID, "pay_a")
	require.NoError(t, err)
	_, err = m.Confirm(ctx, b.ID, "pay_b")
	require.NoError(t, err)

	_, err = m.CreateDraft(ctx, draftReq(2))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCancelConfirmedRejected(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	res, err := m.CreateDraft(ctx, draftReq(2))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, res.ID, "pay_x")
	require.NoError(t, err)

	_, err = m.Cancel(ctx, res.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	got, err := store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status, "state is unchanged after a rejected cancel")
}

func TestCancelDraft(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	res, err := m.CreateDraft(ctx, draftReq(2))
	require.NoError(t, err)
	cancelled, err := m.Cancel(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	left, err := RemainingCapacity(ctx, store, court1.ID, tomorrow, slot7.Window)
	require.NoError(t, err)
	assert.Equal(t, SlotCapacity, left, "cancelled drafts release capacity")
}

func TestExpireDraftIdempotent(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	res, err := m.CreateDraft(ctx, draftReq(2))
	require.NoError(t, err)

	require.NoError(t, m.ExpireDraft(ctx, res.ID))
	got, _ := store.GetByID(ctx, res.ID)
	assert.Equal(t, model.StatusExpired, got.Status)

	// Scenario D: expiring again is a no-op, confirming fails.
	require.NoError(t, m.ExpireDraft(ctx, res.ID))
	_, err = m.Confirm(ctx, res.ID, "pay_late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Expiring a confirmed reservation never happens.
	c, err := m.CreateDraft(ctx, draftReq(2))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, c.ID, "pay_c")
	require.NoError(t, err)
	require.NoError(t, m.ExpireDraft(ctx, c.ID))
	got, _ = store.GetByID(ctx, c.ID)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestAutoExpiryTimerFires(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, newMemCounters(), nil, nil, ManagerConfig{
		Prices:   PriceTable{Short: 200, Long: 350},
		DraftTTL: 20 * time.Millisecond,
		Now:      func() time.Time { return fixedNow },
	})
	defer m.Stop()

	res, err := m.CreateDraft(context.Background(), draftReq(2))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := store.GetByID(context.Background(), res.ID)
		return err == nil && got.Status == model.StatusExpired
	}, time.Second, 10*time.Millisecond)
}

func TestCheckIn(t *testing.T) {
	m, _, notifier := newTestManager(t)
	ctx := context.Background()
	res, err := m.CreateDraft(ctx, draftReq(2))
	require.NoError(t, err)

	_, err = m.CheckIn(ctx, res.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "check-in requires a confirmed reservation")

	_, err = m.Confirm(ctx, res.ID, "pay_x")
	require.NoError(t, err)
	checked, err := m.CheckIn(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, checked.CheckedIn)
	require.NotNil(t, checked.CheckedInAt)

	_, err = m.CheckIn(ctx, res.ID)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.ErrorIs(t, err, ErrInvalidTransition, "double check-in is a transition error too")

	assert.NotEmpty(t, notifier.toOps)
}

func TestModifySupersedesOriginal(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	orig, err := m.CreateDraft(ctx, draftReq(4))
	require.NoError(t, err)

	repl, err := m.Modify(ctx, orig.ID, DraftRequest{
		Court: court1, Slot: slot9, Date: tomorrow, PartySize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, repl.Status)
	require.NotNil(t, repl.SupersedesID)
	assert.Equal(t, orig.ID, *repl.SupersedesID)
	assert.Equal(t, orig.Subject, repl.Subject, "subject carries over")
	assert.Equal(t, int64(700), repl.AmountRupees, "price re-derived for the new slot")

	got, err := store.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, got.Status)
	require.NotNil(t, got.SupersededByID)
	assert.Equal(t, repl.ID, *got.SupersededByID)

	left, err := m.Remaining(ctx, court1.ID, tomorrow, slot7.Window)
	require.NoError(t, err)
	assert.Equal(t, SlotCapacity, left, "superseded reservation releases its capacity")
}

func TestModifySameSlotReusesOwnCapacity(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	orig, err := m.CreateDraft(ctx, draftReq(4))
	require.NoError(t, err)

	// Shrinking the party on a full slot must not trip on the
	// original's own occupancy.
	repl, err := m.Modify(ctx, orig.ID, DraftRequest{
		Court: court1, Slot: slot7, Date: tomorrow, PartySize: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repl.PartySize)
}

func TestConcurrentDraftCodesAreUnique(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	const n = 24
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct slots so capacity never interferes with the
			// code-allocation property under test.
			slot := model.TimeSlot{
				ID:          uint64(100 + i),
				Window:      fmt.Sprintf("%d:00 - %d:30", i%24, i%24),
				StartMinute: (i % 24) * 60,
				EndMinute:   (i%24)*60 + 30,
			}
			res, err := m.CreateDraft(ctx, DraftRequest{
				Subject: "whatsapp:+919876500005", Court: court1,
				Slot: slot, Date: tomorrow, PartySize: 2,
			})
			if err != nil {
				t.Errorf("create draft %d: %v", i, err)
				return
			}
			codes <- res.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for c := range codes {
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, n)
}

func TestConcurrentDraftsNeverOverbook(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.CreateDraft(ctx, draftReq(2))
		}()
	}
	wg.Wait()

	sum, err := store.SumParticipants(ctx, court1.ID, tomorrow, slot7.Window, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, sum, SlotCapacity,
		"sum of party sizes across draft+confirmed must never exceed capacity")
}
