package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
	"github.com/pickleplay/court-reservation/internal/repository"
)

// AdminReservationHandler is the operator console: the front-desk
// views of a day's bookings plus check-in, cancellation and
// rebooking.
type AdminReservationHandler struct {
	Manager      *booking.Manager
	Reservations *repository.ReservationRepo
	Catalog      *repository.CatalogRepo
}

func NewAdminReservationHandler(m *booking.Manager, r *repository.ReservationRepo, cat *repository.CatalogRepo) *AdminReservationHandler {
	return &AdminReservationHandler{Manager: m, Reservations: r, Catalog: cat}
}

// List returns a day's reservations, defaulting to today's confirmed
// ones.  Status filters on the exact lifecycle state.
func (h *AdminReservationHandler) List(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = time.Now().Format(booking.DateFormat)
	}
	if _, err := time.Parse(booking.DateFormat, date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	status := model.ReservationStatus(c.QueryParam("status"))
	if status == "" {
		status = model.StatusConfirmed
	}
	switch status {
	case model.StatusDraft, model.StatusConfirmed, model.StatusCancelled, model.StatusExpired, model.StatusSuperseded:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Reservations.ListByDate(ctx, date, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]reservationView, 0, len(rows))
	for i := range rows {
		out = append(out, viewOf(&rows[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "status": status, "reservations": out})
}

// Get looks a reservation up by id.
func (h *AdminReservationHandler) Get(c echo.Context) error {
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

// GetByCode looks a reservation up by its human-facing code, the way
// the front desk hears it ("R-07").
func (h *AdminReservationHandler) GetByCode(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Manager.GetByCode(ctx, code)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// CheckIn marks a confirmed reservation as arrived.
func (h *AdminReservationHandler) CheckIn(c echo.Context) error {
	id, ok := reservationID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Manager.CheckIn(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

// Cancel cancels a draft on the subject's behalf.
func (h *AdminReservationHandler) Cancel(c echo.Context) error {
	id, ok := reservationID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Manager.Cancel(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res))
}

type modifyReq struct {
	CourtID   uint64 `json:"court_id"`
	SlotID    uint64 `json:"slot_id"`
	Date      string `json:"date"`
	PartySize int    `json:"party_size"`
}

// Modify rebooks a confirmed reservation onto a different slot, court
// or party size.  The original is superseded, never edited, so the
// audit trail keeps both rows.
func (h *AdminReservationHandler) Modify(c echo.Context) error {
	id, ok := reservationID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req modifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if _, err := time.Parse(booking.DateFormat, req.Date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	orig, err := h.Manager.Get(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}

	court, err := h.Catalog.CourtByID(ctx, req.CourtID)
	if err != nil {
		return bookingError(c, err)
	}
	slot, err := h.slotByID(ctx, req.SlotID)
	if err != nil {
		return bookingError(c, err)
	}

	replacement, err := h.Manager.Modify(ctx, id, booking.DraftRequest{
		Subject:   orig.Subject,
		Court:     *court,
		Slot:      *slot,
		Date:      req.Date,
		PartySize: req.PartySize,
	})
	if err != nil {
		return bookingError(c, err)
	}
	superseded, err := h.Manager.Get(ctx, id)
	if err != nil {
		superseded = orig
	}
	return c.JSON(http.StatusOK, echo.Map{
		"superseded":  viewOf(superseded),
		"replacement": viewOf(replacement),
	})
}

func (h *AdminReservationHandler) slotByID(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	slots, err := h.Catalog.ActiveSlots(ctx)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].ID == id {
			return &slots[i], nil
		}
	}
	return nil, booking.ErrNotFound
}
