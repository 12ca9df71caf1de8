package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
)

// Reservations is the slice of the booking engine the dialogue needs.
type Reservations interface {
	CreateDraft(ctx context.Context, req booking.DraftRequest) (*model.Reservation, error)
	Confirm(ctx context.Context, id uint64, paymentRef string) (*model.Reservation, error)
	Cancel(ctx context.Context, id uint64) (*model.Reservation, error)
	Remaining(ctx context.Context, courtID uint64, date, window string) (int, error)
	ListBySubject(ctx context.Context, subject string) ([]model.Reservation, error)
}

// Catalog is read-only court and slot inventory.
type Catalog interface {
	ActiveCourts(ctx context.Context) ([]model.Court, error)
	ActiveSlots(ctx context.Context) ([]model.TimeSlot, error)
}

// Config tunes the engine.
type Config struct {
	BaseURL  string           // payment-page base, e.g. "https://book.example.com"
	Prices   booking.PriceTable
	Location *time.Location   // venue timezone for date menus
	Now      func() time.Time // injectable clock
}

// Engine drives one conversation turn per inbound message.  It is
// safe for concurrent use: per-subject state lives in the session
// store and the engine itself holds only immutable configuration.
type Engine struct {
	sessions     *SessionStore
	reservations Reservations
	catalog      Catalog

	baseURL string
	prices  booking.PriceTable
	loc     *time.Location
	now     func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(sessions *SessionStore, reservations Reservations, catalog Catalog, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	return &Engine{
		sessions:     sessions,
		reservations: reservations,
		catalog:      catalog,
		baseURL:      cfg.BaseURL,
		prices:       cfg.Prices,
		loc:          cfg.Location,
		now:          cfg.Now,
	}
}

// HandleMessage processes one inbound message and returns the reply
// text.  Errors are returned only for infrastructure failures
// (catalog or store unreachable); every user mistake produces a
// re-prompt, not an error.
func (e *Engine) HandleMessage(ctx context.Context, from, body string) (string, error) {
	input := strings.ToLower(strings.TrimSpace(body))

	// Greetings and restart reset the conversation from any stage.
	if input == "hi" || input == "hello" || input == "restart" {
		e.sessions.Reset(from)
		return e.welcomeText(from), nil
	}

	sess, ok := e.sessions.Get(from)
	if !ok {
		e.sessions.Reset(from)
		return e.welcomeText(from), nil
	}

	// "menu" bails out of any stage back to the top.
	if input == "menu" {
		sess.Stage = StageMenu
		sess.Draft = Draft{}
		sess.ReservationID = 0
		return menuText, nil
	}

	switch sess.Stage {
	case StageMenu:
		return e.handleMenu(ctx, sess, from, input)
	case StageChooseDate:
		return e.handleChooseDate(ctx, sess, input)
	case StageChoosePartySize:
		return e.handleChoosePartySize(ctx, sess, input)
	case StageChooseSlot:
		return e.handleChooseSlot(ctx, sess, input)
	case StageChooseCourt:
		return e.handleChooseCourt(sess, input)
	case StageConfirmSummary:
		return e.handleConfirmSummary(ctx, sess, from, input)
	case StagePaymentPending:
		return e.handlePaymentPending(ctx, sess, from, input)
	case StageAvailabilityDate:
		return e.handleAvailabilityDate(ctx, sess, input)
	case StageAfterAvail:
		return e.handleAfterAvailability(ctx, sess, input)
	}

	e.sessions.Reset(from)
	return "Sorry, I didn't understand. Reply 'hi' to restart or 'menu' to see options.", nil
}

const menuText = `*PicklePlay Court Booking*

*1* Book Court - reserve your court now
*2* My Bookings - view your reservations
*3* Check Availability - see open slots
*4* Pricing & Rules - view our rates
*5* Contact Us - get support

Reply with a number or option name.`

func (e *Engine) welcomeText(from string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(from, "whatsapp:"), "+")
	return fmt.Sprintf("*Welcome to PicklePlay Court Booking!*\n\nHello +%s, please select an option:\n\n", name) + menuText
}

func (e *Engine) handleMenu(ctx context.Context, sess *Session, from, input string) (string, error) {
	switch {
	case input == "1" || strings.Contains(input, "book"):
		sess.DateOptions = e.nextSevenDays()
		sess.Stage = StageChooseDate
		return datePrompt("*Select a booking date:*", sess.DateOptions), nil

	case input == "2" || strings.Contains(input, "my booking"):
		return e.myBookingsText(ctx, from)

	case input == "3" || strings.Contains(input, "availability"):
		sess.DateOptions = e.nextSevenDays()
		sess.Stage = StageAvailabilityDate
		return datePrompt("*Check availability for:*", sess.DateOptions), nil

	case input == "4" || strings.Contains(input, "pricing") || strings.Contains(input, "rules"):
		return e.pricingText(), nil

	case input == "5" || strings.Contains(input, "contact"):
		return contactText, nil
	}
	return "Invalid selection. Please reply with a number from 1-5 or 'menu' to see options.", nil
}

func (e *Engine) handleChooseDate(ctx context.Context, sess *Session, input string) (string, error) {
	opt, ok := pickOption(input, sess.DateOptions)
	if !ok {
		return "Invalid date selection. Please reply with a number from the list.", nil
	}
	sess.Draft = Draft{Date: opt.Value}
	sess.Stage = StageChoosePartySize
	return fmt.Sprintf("Booking for %s.\n\nHow many players? (%d-%d)\n\nReply with the number of players, or 'back' for dates.",
		opt.Display, booking.MinPartySize, booking.MaxPartySize), nil
}

func (e *Engine) handleChoosePartySize(ctx context.Context, sess *Session, input string) (string, error) {
	if input == "back" {
		sess.Stage = StageChooseDate
		return datePrompt("*Select a booking date:*", sess.DateOptions), nil
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < booking.MinPartySize || n > booking.MaxPartySize {
		return fmt.Sprintf("Please reply with a number of players between %d and %d.",
			booking.MinPartySize, booking.MaxPartySize), nil
	}
	sess.Draft.PartySize = n
	return e.showSlotMenu(ctx, sess)
}

// showSlotMenu lists slots on the chosen date that are still inside
// the booking window and have at least one court able to take the
// party.  Filtering here keeps dead options out of the user's menu;
// createDraft re-validates regardless.
func (e *Engine) showSlotMenu(ctx context.Context, sess *Session) (string, error) {
	slots, err := e.catalog.ActiveSlots(ctx)
	if err != nil {
		return "", err
	}
	courts, err := e.catalog.ActiveCourts(ctx)
	if err != nil {
		return "", err
	}
	now := e.now()
	open := make([]model.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.Date != nil && *slot.Date != sess.Draft.Date {
			continue
		}
		if !booking.IsBookable(slot.Window, sess.Draft.Date, now) {
			continue
		}
		fits, err := e.anyCourtFits(ctx, courts, sess.Draft.Date, slot.Window, sess.Draft.PartySize)
		if err != nil {
			return "", err
		}
		if fits {
			open = append(open, slot)
		}
	}
	if len(open) == 0 {
		sess.Stage = StageChooseDate
		return "No available time slots for that date and party size. Please select another date.\n\n" +
			datePrompt("*Select a booking date:*", sess.DateOptions), nil
	}
	sess.SlotOptions = open
	sess.Stage = StageChooseSlot
	var b strings.Builder
	fmt.Fprintf(&b, "Available time slots for %s:\n\n", sess.Draft.Date)
	for i, s := range open {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Window)
	}
	b.WriteString("\nReply with the slot number, or 'back' to change players.")
	return b.String(), nil
}

func (e *Engine) anyCourtFits(ctx context.Context, courts []model.Court, date, window string, party int) (bool, error) {
	for _, c := range courts {
		left, err := e.reservations.Remaining(ctx, c.ID, date, window)
		if err != nil {
			return false, err
		}
		if left >= party {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) handleChooseSlot(ctx context.Context, sess *Session, input string) (string, error) {
	if input == "back" {
		sess.Stage = StageChoosePartySize
		return fmt.Sprintf("How many players? (%d-%d)", booking.MinPartySize, booking.MaxPartySize), nil
	}
	slot, ok := pickOption(input, sess.SlotOptions)
	if !ok {
		return "Invalid slot. Reply with the slot number from the list.", nil
	}
	sess.Draft.Slot = slot

	courts, err := e.catalog.ActiveCourts(ctx)
	if err != nil {
		return "", err
	}
	open := make([]model.Court, 0, len(courts))
	for _, c := range courts {
		left, err := e.reservations.Remaining(ctx, c.ID, sess.Draft.Date, slot.Window)
		if err != nil {
			return "", err
		}
		if left >= sess.Draft.PartySize {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		return "No courts available for this time slot. Please select another slot.", nil
	}
	sess.CourtOptions = open
	sess.Stage = StageChooseCourt

	unit := e.prices.ForClass(booking.ClassOf(slot.StartMinute, slot.EndMinute))
	var b strings.Builder
	fmt.Fprintf(&b, "Available courts for %s - %s:\n\n", sess.Draft.Date, slot.Window)
	for i, c := range open {
		fmt.Fprintf(&b, "%d. %s (₹%d/player)\n", i+1, c.Name, unit)
	}
	b.WriteString("\nReply with the court number, or 'back' for slots.")
	return b.String(), nil
}

func (e *Engine) handleChooseCourt(sess *Session, input string) (string, error) {
	if input == "back" {
		sess.Stage = StageChooseSlot
		var b strings.Builder
		fmt.Fprintf(&b, "Available time slots for %s:\n\n", sess.Draft.Date)
		for i, s := range sess.SlotOptions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s.Window)
		}
		b.WriteString("\nReply with the slot number.")
		return b.String(), nil
	}
	court, ok := pickOption(input, sess.CourtOptions)
	if !ok {
		return "Invalid court. Reply with the court number from the list.", nil
	}
	sess.Draft.Court = court
	sess.Stage = StageConfirmSummary

	slot := sess.Draft.Slot
	amount := e.prices.ForClass(booking.ClassOf(slot.StartMinute, slot.EndMinute)) * int64(sess.Draft.PartySize)
	return fmt.Sprintf(`*Booking Summary*

Date: %s
Time: %s
Court: %s
Players: %d
Amount: ₹%d

Reply 'confirm' to proceed or 'cancel' to abort.`,
		sess.Draft.Date, slot.Window, court.Name, sess.Draft.PartySize, amount), nil
}

func (e *Engine) handleConfirmSummary(ctx context.Context, sess *Session, from, input string) (string, error) {
	switch {
	case strings.Contains(input, "confirm"):
		res, err := e.reservations.CreateDraft(ctx, booking.DraftRequest{
			Subject:   from,
			Court:     sess.Draft.Court,
			Slot:      sess.Draft.Slot,
			Date:      sess.Draft.Date,
			PartySize: sess.Draft.PartySize,
		})
		switch {
		case errors.Is(err, booking.ErrCapacityExceeded):
			// Someone took the court between the menu and now.
			sess.Stage = StageChooseSlot
			return "Sorry, that court just filled up for this time slot. Please pick another slot from the earlier list, or 'menu' to start over.", nil
		case errors.Is(err, booking.ErrSlotClosed):
			sess.Stage = StageChooseDate
			return "Sorry, this time slot is no longer open for booking (slots close 2 hours before start). Please select another date.\n\n" +
				datePrompt("*Select a booking date:*", sess.DateOptions), nil
		case err != nil:
			return "", err
		}
		sess.ReservationID = res.ID
		sess.Stage = StagePaymentPending
		link := fmt.Sprintf("%s/payment?reservation=%d", e.baseURL, res.ID)
		return fmt.Sprintf(`*Booking Drafted*

Booking: %s
Date: %s
Time: %s
Court: %s
Players: %d
Amount: ₹%d

Payment link: %s

Please complete your payment within 5 minutes.
Reply 'paid' after paying or 'cancel' to abort.`,
			res.Code, res.Date, res.SlotWindow, res.CourtName, res.PartySize, res.AmountRupees, link), nil

	case strings.Contains(input, "cancel"):
		sess.Draft = Draft{}
		sess.Stage = StageMenu
		return "Booking cancelled. Reply 'menu' to see options.", nil
	}
	return "Please reply 'confirm' to proceed with the booking or 'cancel' to abort.", nil
}

func (e *Engine) handlePaymentPending(ctx context.Context, sess *Session, from, input string) (string, error) {
	switch {
	case strings.Contains(input, "paid"):
		res, err := e.reservations.Confirm(ctx, sess.ReservationID, "")
		switch {
		case errors.Is(err, booking.ErrCapacityExceeded), errors.Is(err, booking.ErrSlotClosed):
			sess.Stage = StageMenu
			sess.ReservationID = 0
			return "Sorry, this slot was taken while your payment was pending. Your booking was not charged against the court; reply 'menu' to book another slot.", nil
		case errors.Is(err, booking.ErrInvalidTransition):
			sess.Stage = StageMenu
			sess.ReservationID = 0
			return "This booking is no longer payable (it may have expired after 5 minutes). Reply 'menu' to start a new booking.", nil
		case errors.Is(err, booking.ErrNotFound):
			e.sessions.Delete(from)
			return "Booking not found. Reply 'hi' to start over.", nil
		case err != nil:
			return "", err
		}
		e.sessions.Delete(from)
		return fmt.Sprintf(`*Booking Confirmed!*

Booking: %s
Invoice: %s
Date: %s
Time: %s
Court: %s
Amount: ₹%d

Thank you for booking with PicklePlay! Reply 'menu' for the main menu.`,
			res.Code, deref(res.InvoiceCode), res.Date, res.SlotWindow, res.CourtName, res.AmountRupees), nil

	case strings.Contains(input, "cancel"):
		_, err := e.reservations.Cancel(ctx, sess.ReservationID)
		e.sessions.Delete(from)
		if err != nil && !errors.Is(err, booking.ErrNotFound) && !errors.Is(err, booking.ErrInvalidTransition) {
			return "", err
		}
		return "Booking cancelled. Reply 'menu' to return to the main menu.", nil
	}
	return "Please reply 'paid' after completing payment or 'cancel' to abort the booking.", nil
}

func (e *Engine) handleAvailabilityDate(ctx context.Context, sess *Session, input string) (string, error) {
	opt, ok := pickOption(input, sess.DateOptions)
	if !ok {
		return "Invalid date selection. Please reply with a number from the list.", nil
	}
	slots, err := e.catalog.ActiveSlots(ctx)
	if err != nil {
		return "", err
	}
	courts, err := e.catalog.ActiveCourts(ctx)
	if err != nil {
		return "", err
	}
	now := e.now()
	var b strings.Builder
	fmt.Fprintf(&b, "Availability for %s:\n\n", opt.Display)
	listed := 0
	for _, slot := range slots {
		if slot.Date != nil && *slot.Date != opt.Value {
			continue
		}
		if !booking.IsBookable(slot.Window, opt.Value, now) {
			continue
		}
		total := 0
		for _, c := range courts {
			left, err := e.reservations.Remaining(ctx, c.ID, opt.Value, slot.Window)
			if err != nil {
				return "", err
			}
			total += left
		}
		if total > 0 {
			fmt.Fprintf(&b, "%s: %d spots open\n", slot.Window, total)
			listed++
		}
	}
	if listed == 0 {
		sess.Stage = StageMenu
		return "No available time slots for this date. Please select another date from the menu.", nil
	}
	b.WriteString("\nReply 'book' to make a booking or 'menu' for the main menu.")
	sess.Stage = StageAfterAvail
	return b.String(), nil
}

func (e *Engine) handleAfterAvailability(ctx context.Context, sess *Session, input string) (string, error) {
	if strings.Contains(input, "book") {
		sess.DateOptions = e.nextSevenDays()
		sess.Stage = StageChooseDate
		return datePrompt("*Select a booking date:*", sess.DateOptions), nil
	}
	return "Reply 'book' to make a booking or 'menu' for the main menu.", nil
}

func (e *Engine) myBookingsText(ctx context.Context, from string) (string, error) {
	list, err := e.reservations.ListBySubject(ctx, from)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "*You have no bookings.*\n\nReply 'menu' to return to the main menu.", nil
	}
	var b strings.Builder
	b.WriteString("*Your Bookings:*\n\n")
	for i, r := range list {
		fmt.Fprintf(&b, "*Booking #%d*\nCode: %s\nDate: %s\nTime: %s\nCourt: %s\nPlayers: %d\nStatus: %s\n\n",
			i+1, r.Code, r.Date, r.SlotWindow, r.CourtName, r.PartySize, r.Status)
	}
	b.WriteString("Reply 'menu' to return to the main menu.")
	return b.String(), nil
}

func (e *Engine) pricingText() string {
	return fmt.Sprintf(`*PicklePlay Pricing & Rules*

*Per-player pricing:*
- Standard slot (under 2 hours): ₹%d/player
- Long slot (2 hours): ₹%d/player
- Parties of %d-%d players per court

*Booking rules:*
- Bookings must be made at least 2 hours in advance
- Unpaid bookings expire after 5 minutes
- Please arrive 10 minutes before your slot

Reply 'menu' to return to the main menu.`,
		e.prices.ForClass(booking.ClassShort), e.prices.ForClass(booking.ClassLong),
		booking.MinPartySize, booking.MaxPartySize)
}

const contactText = `*Contact PicklePlay*

For urgent matters:
Call: +91-9876543210

For general inquiries:
Email: support@pickleplay.example

Reply 'menu' to return to the main menu.`

// nextSevenDays builds the date menu starting today in the venue
// timezone.
func (e *Engine) nextSevenDays() []DateOption {
	out := make([]DateOption, 0, 7)
	base := e.now().In(e.loc)
	for i := 0; i < 7; i++ {
		d := base.AddDate(0, 0, i)
		out = append(out, DateOption{
			Value:   d.Format(booking.DateFormat),
			Display: d.Format("2 Jan"),
		})
	}
	return out
}

func datePrompt(header string, opts []DateOption) string {
	var b strings.Builder
	b.WriteString(header + "\n\n")
	for i, o := range opts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, o.Display)
	}
	b.WriteString("\nReply with the date number.")
	return b.String()
}

// pickOption resolves a 1-based numeric reply against a menu slice.
func pickOption[T any](input string, opts []T) (T, bool) {
	var zero T
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(opts) {
		return zero, false
	}
	return opts[idx-1], true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
