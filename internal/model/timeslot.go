package model

import "time"

// TimeSlot is a named time window within a day, e.g. "7:00 AM - 8:00 AM".
// The textual window is kept for display and for denormalising onto
// reservations; StartMinute and EndMinute are parsed from it once when
// the catalog row is loaded so that availability checks never re-parse
// the text.
//
// Fields:
//  ID          – primary key identifier.
//  Window      – textual window as entered by the operator.
//  Date        – optional specific date the slot is limited to
//                (nil = recurs daily).
//  StartMinute – minutes after midnight the window opens.
//  EndMinute   – minutes after midnight the window closes.
//  IsActive    – inactive slots are hidden from all menus.
type TimeSlot struct {
	ID          uint64    // time_slots.id
	Window      string    // time_slots.window
	Date        *string   // time_slots.date (nullable, YYYY-MM-DD)
	StartMinute int       // derived from Window at load time
	EndMinute   int       // derived from Window at load time
	IsActive    bool      // time_slots.is_active
	CreatedAt   time.Time // time_slots.created_at
}

// DurationMinutes returns the span of the window.  A non-positive
// span means the window text could not be parsed; callers treat such
// slots as the short duration class.
func (s *TimeSlot) DurationMinutes() int {
	return s.EndMinute - s.StartMinute
}
