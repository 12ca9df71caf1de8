package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
)

// CatalogRepo provides read access to the courts and time_slots
// tables.  The catalog is tiny and nearly static, so lookups are
// cached in Redis for a short TTL; every cache failure falls through
// to MySQL so a flapping cache never takes the menu down.  Slot
// windows are parsed into start/end minutes at scan time, which keeps
// the parse out of the per-message hot path.
type CatalogRepo struct {
	db    *sql.DB
	cache *redis.Client
	ttl   time.Duration
}

// NewCatalogRepo returns a CatalogRepo bound to the given database.
// cache may be nil to disable caching entirely.
func NewCatalogRepo(db *sql.DB, cache *redis.Client) *CatalogRepo {
	return &CatalogRepo{db: db, cache: cache, ttl: 30 * time.Second}
}

const (
	courtsCacheKey = "catalog:courts"
	slotsCacheKey  = "catalog:slots"
)

// ActiveCourts returns all active courts ordered by id.
func (r *CatalogRepo) ActiveCourts(ctx context.Context) ([]model.Court, error) {
	if courts, ok := cacheGet[[]model.Court](ctx, r.cache, courtsCacheKey); ok {
		return courts, nil
	}
	const q = `SELECT id, name, price_per_head, court_type, is_active, created_at, updated_at
               FROM courts WHERE is_active = 1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courts := make([]model.Court, 0)
	for rows.Next() {
		var c model.Court
		if err := rows.Scan(&c.ID, &c.Name, &c.PricePerHead, &c.CourtType, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.cacheSet(ctx, courtsCacheKey, courts)
	return courts, nil
}

// ActiveSlots returns all active time slots ordered by start time,
// with each window parsed into minutes.  Slots whose window text does
// not parse are kept with zero minutes; the bookability check treats
// them leniently rather than hiding inventory over a formatting slip.
func (r *CatalogRepo) ActiveSlots(ctx context.Context) ([]model.TimeSlot, error) {
	if slots, ok := cacheGet[[]model.TimeSlot](ctx, r.cache, slotsCacheKey); ok {
		return slots, nil
	}
	// window is reserved in MySQL 8, hence the backticks.
	const q = "SELECT id, `window`, date, is_active, created_at " +
		"FROM time_slots WHERE is_active = 1 ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.TimeSlot, 0)
	for rows.Next() {
		var (
			s    model.TimeSlot
			date sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Window, &date, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		if date.Valid {
			d := date.String
			s.Date = &d
		}
		if start, end, err := booking.ParseWindow(s.Window); err == nil {
			s.StartMinute = start
			s.EndMinute = end
		} else {
			log.Printf("catalog: unparseable window %q on slot %d: %v", s.Window, s.ID, err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.cacheSet(ctx, slotsCacheKey, slots)
	return slots, nil
}

// CourtByID returns one active court.  Unknown or inactive ids map to
// booking.ErrNotFound.
func (r *CatalogRepo) CourtByID(ctx context.Context, id uint64) (*model.Court, error) {
	const q = `SELECT id, name, price_per_head, court_type, is_active, created_at, updated_at
               FROM courts WHERE id = ? AND is_active = 1`
	var c model.Court
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Name, &c.PricePerHead, &c.CourtType, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

// cacheGet reads and decodes a cached value.  Any failure (miss,
// connection error, stale encoding) reports a miss.
func cacheGet[T any](ctx context.Context, cache *redis.Client, key string) (T, bool) {
	var out T
	if cache == nil {
		return out, false
	}
	raw, err := cache.Get(ctx, key).Bytes()
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}

func (r *CatalogRepo) cacheSet(ctx context.Context, key string, v interface{}) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		log.Printf("catalog: cache set %s: %v", key, err)
	}
}
