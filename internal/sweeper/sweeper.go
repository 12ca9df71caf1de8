// Package sweeper runs the periodic pass that expires abandoned
// drafts and fires 24-hour and 1-hour reminders.  The per-draft
// in-process timers the booking engine arms are a fast path only; the
// sweep is the durable fallback after a restart, so no draft outlives
// its payment window by more than one sweep interval.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
)

// Store is the slice of the reservation repository the sweep reads
// and flags.
type Store interface {
	ListStaleDrafts(ctx context.Context, createdBefore time.Time, dateBefore string) ([]model.Reservation, error)
	ListConfirmedForReminders(ctx context.Context, dateFrom string) ([]model.Reservation, error)
	Transition(ctx context.Context, id uint64, from []model.ReservationStatus, mutate func(*model.Reservation)) (*model.Reservation, error)
}

// Expirer expires a single draft; the booking manager implements it.
type Expirer interface {
	ExpireDraft(ctx context.Context, id uint64) error
}

// reminderTolerance is the half-width of the window around each
// horizon in which a reminder fires.  With a 15-minute sweep period a
// 0.3-hour tolerance guarantees at least one pass lands inside the
// window; the flags keep a second overlapping pass from re-sending.
const reminderTolerance = 0.3

// Schedule is the cron expression for the sweep pass.
const Schedule = "*/15 * * * *"

// Config tunes the sweeper.
type Config struct {
	DraftTTL time.Duration    // matches the booking manager's draft timer
	Location *time.Location   // venue timezone for slot-start arithmetic
	Now      func() time.Time // injectable clock
}

// Sweeper owns the cron schedule and the pass logic.
type Sweeper struct {
	store    Store
	expirer  Expirer
	notifier booking.Notifier

	draftTTL time.Duration
	loc      *time.Location
	now      func() time.Time

	cron *cron.Cron
}

// New wires a Sweeper.  notifier may be nil in tests.
func New(store Store, expirer Expirer, notifier booking.Notifier, cfg Config) *Sweeper {
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sweeper{
		store:    store,
		expirer:  expirer,
		notifier: notifier,
		draftTTL: cfg.DraftTTL,
		loc:      cfg.Location,
		now:      cfg.Now,
	}
}

// Start schedules the sweep every 15 minutes and runs one pass
// immediately so a restart catches up without waiting.
func (s *Sweeper) Start() error {
	c := cron.New()
	_, err := c.AddFunc(Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.RunPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron = c
	c.Start()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.RunPass(ctx)
	}()
	return nil
}

// Stop halts the schedule.  A pass already running completes.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunPass executes one sweep: expiry first so freed capacity is
// visible before reminders go out.  Each record is processed in
// isolation; one bad row is logged and skipped, never aborting the
// pass.
func (s *Sweeper) RunPass(ctx context.Context) {
	s.expireStaleDrafts(ctx)
	s.sendReminders(ctx)
}

func (s *Sweeper) expireStaleDrafts(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.draftTTL)
	today := now.In(s.loc).Format(booking.DateFormat)
	drafts, err := s.store.ListStaleDrafts(ctx, cutoff, today)
	if err != nil {
		log.Printf("sweeper: list stale drafts: %v", err)
		return
	}
	for _, d := range drafts {
		if err := s.expirer.ExpireDraft(ctx, d.ID); err != nil {
			log.Printf("sweeper: expire draft %s: %v", d.Code, err)
			continue
		}
		log.Printf("sweeper: expired stale draft %s (%s %s)", d.Code, d.Date, d.SlotWindow)
	}
}

func (s *Sweeper) sendReminders(ctx context.Context) {
	now := s.now()
	today := now.In(s.loc).Format(booking.DateFormat)
	confirmed, err := s.store.ListConfirmedForReminders(ctx, today)
	if err != nil {
		log.Printf("sweeper: list confirmed: %v", err)
		return
	}
	for _, r := range confirmed {
		if err := s.remind(ctx, r, now); err != nil {
			log.Printf("sweeper: remind %s: %v", r.Code, err)
		}
	}
}

// remind fires whichever reminder horizon the reservation has entered,
// flagging the row before sending so an overlapping pass cannot send
// twice.  A reservation inside neither window is left untouched.
func (s *Sweeper) remind(ctx context.Context, r model.Reservation, now time.Time) error {
	start, err := booking.SlotStartAt(r.Date, r.SlotWindow, s.loc)
	if err != nil {
		// Unparseable window: no start time means no horizon to hit.
		return fmt.Errorf("slot start: %w", err)
	}
	hours := start.Sub(now).Hours()

	switch {
	case !r.Reminded24h && math.Abs(hours-24) < reminderTolerance:
		return s.flagAndNotify(ctx, r, "24 hours",
			func(row *model.Reservation) { row.Reminded24h = true })
	case !r.Reminded1h && math.Abs(hours-1) < reminderTolerance:
		return s.flagAndNotify(ctx, r, "1 hour",
			func(row *model.Reservation) { row.Reminded1h = true })
	}
	return nil
}

func (s *Sweeper) flagAndNotify(ctx context.Context, r model.Reservation, horizon string, setFlag func(*model.Reservation)) error {
	if _, err := s.store.Transition(ctx, r.ID,
		[]model.ReservationStatus{model.StatusConfirmed}, setFlag); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifySubject(ctx, r.Subject, fmt.Sprintf(
			"*Booking Reminder*\n\nYour booking %s starts in about %s.\n\nDate: %s\nTime: %s\nCourt: %s\n\nSee you on court!",
			r.Code, horizon, r.Date, r.SlotWindow, r.CourtName))
	}
	return nil
}
