package booking

import "context"

// Capacity and party-size bounds.  Capacity is a fixed constant per
// (court, date, window) regardless of court attributes.
const (
	SlotCapacity = 4
	MinPartySize = 2
	MaxPartySize = 4
)

// CapacityReader is the slice of the store the capacity calculator
// needs: the sum of party sizes over reservations in {DRAFT,
// CONFIRMED} for one (court, date, window), optionally excluding a
// single reservation (used by the confirm-time re-check and the
// modification flow).
type CapacityReader interface {
	SumParticipants(ctx context.Context, courtID uint64, date, window string, excludeID uint64) (int, error)
}

// RemainingCapacity answers how much party-size capacity is left for
// a court on a date and window.  The result is clamped to [0,
// SlotCapacity]; a transient overbook caused by the accepted race
// window reads as zero rather than a negative number.
func RemainingCapacity(ctx context.Context, r CapacityReader, courtID uint64, date, window string) (int, error) {
	used, err := r.SumParticipants(ctx, courtID, date, window, 0)
	if err != nil {
		return 0, err
	}
	left := SlotCapacity - used
	if left < 0 {
		left = 0
	}
	return left, nil
}
