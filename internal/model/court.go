package model

import "time"

// Court is a bookable unit of the facility.  Courts are managed
// through the operator console; the reservation engine only ever
// reads them.  Capacity per time window is a fixed constant
// (SlotCapacity in the booking package) and is deliberately not an
// attribute of the court.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name shown in dialogue menus and receipts.
//  PricePerHead – legacy per-participant display price in rupees;
//                 the charged amount is derived from the slot's
//                 duration class, not from this field.
//  CourtType    – "Indoor" or "Outdoor".
//  IsActive     – inactive courts are hidden from all menus.
type Court struct {
	ID           uint64    // courts.id
	Name         string    // courts.name
	PricePerHead int64     // courts.price_per_head
	CourtType    string    // courts.court_type
	IsActive     bool      // courts.is_active
	CreatedAt    time.Time // courts.created_at
	UpdatedAt    time.Time // courts.updated_at
}
