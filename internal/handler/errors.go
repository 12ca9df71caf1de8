package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pickleplay/court-reservation/internal/booking"
)

// bookingError maps the booking package's sentinel errors onto HTTP
// responses.  Anything unrecognised is a 500.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, booking.ErrAlreadyCheckedIn):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already checked in"})
	case errors.Is(err, booking.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not in a valid state for this action"})
	case errors.Is(err, booking.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot capacity exceeded"})
	case errors.Is(err, booking.ErrSlotClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot closed for booking"})
	case errors.Is(err, booking.ErrInvalidPartySize):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrUpstreamUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment or messaging gateway unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
