// Package repository implements MySQL persistence for reservations,
// the court/slot catalog, named counters and operator accounts.  The
// repositories translate database/sql failures into the sentinel
// errors the booking package defines, so higher layers never compare
// against sql.ErrNoRows directly. All timestamp columns are stored in
// UTC.
package repository

import (
	"database/sql"
	"errors"

	"github.com/pickleplay/court-reservation/internal/booking"
)

// mapNotFound converts sql.ErrNoRows into booking.ErrNotFound and
// passes every other error through unchanged.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return booking.ErrNotFound
	}
	return err
}
