package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/model"
)

// ReservationRepo provides data access to the reservations table.  It
// implements booking.Store: Transition performs its read-modify-write
// inside a transaction with SELECT ... FOR UPDATE so concurrent
// processes serialise on the row, and SumParticipants is the capacity
// aggregate the booking engine checks before admitting a party.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// reservationColumns is the canonical column list shared by every
// SELECT in this file so scanReservation stays in one place.
const reservationColumns = `id, code, subject, court_id, court_name, slot_id, slot_window, date,
       party_size, duration_class, amount_rupees, order_ref, payment_ref, invoice_code,
       status, confirmed_at, checked_in, checked_in_at, reminded_24h, reminded_1h,
       supersedes_id, superseded_by_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanReservation populates a model.Reservation from a row selected
// with reservationColumns, converting the nullable columns to
// pointers.
func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res                               model.Reservation
		status                            string
		orderRef, paymentRef, invoice     sql.NullString
		confirmedAt, checkedInAt          sql.NullTime
		supersedesID, supersededByID      sql.NullInt64
	)
	err := row.Scan(
		&res.ID, &res.Code, &res.Subject, &res.CourtID, &res.CourtName,
		&res.SlotID, &res.SlotWindow, &res.Date,
		&res.PartySize, &res.DurationClass, &res.AmountRupees,
		&orderRef, &paymentRef, &invoice,
		&status, &confirmedAt, &res.CheckedIn, &checkedInAt,
		&res.Reminded24h, &res.Reminded1h,
		&supersedesID, &supersededByID,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	if orderRef.Valid {
		v := orderRef.String
		res.OrderRef = &v
	}
	if paymentRef.Valid {
		v := paymentRef.String
		res.PaymentRef = &v
	}
	if invoice.Valid {
		v := invoice.String
		res.InvoiceCode = &v
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		res.ConfirmedAt = &t
	}
	if checkedInAt.Valid {
		t := checkedInAt.Time.UTC()
		res.CheckedInAt = &t
	}
	if supersedesID.Valid {
		v := uint64(supersedesID.Int64)
		res.SupersedesID = &v
	}
	if supersededByID.Valid {
		v := uint64(supersededByID.Int64)
		res.SupersededByID = &v
	}
	return &res, nil
}

// nullTime converts an optional timestamp to its driver value.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullID(id *uint64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// Create inserts a new reservation row and populates the generated ID
// on the provided model.  The status supplied by the caller is stored
// verbatim; the booking engine only ever creates rows in DRAFT.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
        (code, subject, court_id, court_name, slot_id, slot_window, date,
         party_size, duration_class, amount_rupees, order_ref, payment_ref, invoice_code,
         status, confirmed_at, checked_in, checked_in_at, reminded_24h, reminded_1h,
         supersedes_id, superseded_by_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		res.Code, res.Subject, res.CourtID, res.CourtName,
		res.SlotID, res.SlotWindow, res.Date,
		res.PartySize, res.DurationClass, res.AmountRupees,
		nullStr(res.OrderRef), nullStr(res.PaymentRef), nullStr(res.InvoiceCode),
		string(res.Status), nullTime(res.ConfirmedAt),
		res.CheckedIn, nullTime(res.CheckedInAt),
		res.Reminded24h, res.Reminded1h,
		nullID(res.SupersedesID), nullID(res.SupersededByID),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the row to populate database-assigned timestamps.
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID)
	stored, err := scanReservation(row)
	if err != nil {
		return err
	}
	*res = *stored
	return nil
}

// GetByID returns a reservation by primary key.  Unknown ids map to
// booking.ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return res, nil
}

// GetByCode returns a reservation by its human-facing code.
func (r *ReservationRepo) GetByCode(ctx context.Context, code string) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE code = ?`, code)
	res, err := scanReservation(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return res, nil
}

// Transition atomically moves a reservation between statuses.  The row
// is locked with SELECT ... FOR UPDATE for the duration of the
// transaction; when its current status is not in the from set the
// transaction rolls back and booking.ErrInvalidTransition is returned
// without calling mutate.  On success the updated row is returned.
func (r *ReservationRepo) Transition(ctx context.Context, id uint64, from []model.ReservationStatus, mutate func(*model.Reservation)) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	res, err := scanReservation(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	allowed := false
	for _, st := range from {
		if res.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, booking.ErrInvalidTransition
	}

	mutate(res)

	const upd = `UPDATE reservations SET
        status = ?, order_ref = ?, payment_ref = ?, invoice_code = ?,
        confirmed_at = ?, checked_in = ?, checked_in_at = ?,
        reminded_24h = ?, reminded_1h = ?,
        supersedes_id = ?, superseded_by_id = ?,
        updated_at = UTC_TIMESTAMP()
        WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd,
		string(res.Status), nullStr(res.OrderRef), nullStr(res.PaymentRef), nullStr(res.InvoiceCode),
		nullTime(res.ConfirmedAt), res.CheckedIn, nullTime(res.CheckedInAt),
		res.Reminded24h, res.Reminded1h,
		nullID(res.SupersedesID), nullID(res.SupersededByID),
		id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	res.UpdatedAt = time.Now().UTC()
	return res, nil
}

// SumParticipants returns the total party size booked against a
// (court, date, window) slot across capacity-holding statuses.  The
// excludeID row is left out of the sum; callers pass their own id when
// re-validating at confirmation time, and zero otherwise.
func (r *ReservationRepo) SumParticipants(ctx context.Context, courtID uint64, date, window string, excludeID uint64) (int, error) {
	const q = `SELECT COALESCE(SUM(party_size), 0)
               FROM reservations
               WHERE court_id = ? AND date = ? AND slot_window = ?
                 AND status IN ('DRAFT', 'CONFIRMED')
                 AND id <> ?`
	var sum int
	if err := r.db.QueryRowContext(ctx, q, courtID, date, window, excludeID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// queryReservations runs a SELECT built on reservationColumns and
// scans every row.
func (r *ReservationRepo) queryReservations(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBySubject returns all reservations for a counterparty handle,
// newest first.  An empty slice is returned when none exist.
func (r *ReservationRepo) ListBySubject(ctx context.Context, subject string) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
         WHERE subject = ? ORDER BY created_at DESC`, subject)
}

// ListByDate returns all reservations for a calendar date, optionally
// filtered by status.  Used by the operator console.
func (r *ReservationRepo) ListByDate(ctx context.Context, date string, status model.ReservationStatus) ([]model.Reservation, error) {
	if status != "" {
		return r.queryReservations(ctx,
			`SELECT `+reservationColumns+` FROM reservations
             WHERE date = ? AND status = ? ORDER BY slot_window, created_at`, date, string(status))
	}
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
         WHERE date = ? ORDER BY slot_window, created_at`, date)
}

// ListStaleDrafts returns drafts abandoned past their payment window:
// either created before the cutoff, or dated before today so the slot
// can never be played.  The sweeper expires these on each pass.
func (r *ReservationRepo) ListStaleDrafts(ctx context.Context, createdBefore time.Time, dateBefore string) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
         WHERE status = 'DRAFT' AND (created_at < ? OR date < ?)
         ORDER BY id`, createdBefore.UTC(), dateBefore)
}

// ListConfirmedForReminders returns confirmed reservations that still
// owe at least one reminder for dates on or after the given day.  The
// sweeper computes the exact horizon per row; this query only narrows
// the candidate set.
func (r *ReservationRepo) ListConfirmedForReminders(ctx context.Context, dateFrom string) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
         WHERE status = 'CONFIRMED' AND date >= ?
           AND (reminded_24h = 0 OR reminded_1h = 0)
         ORDER BY date, slot_window`, dateFrom)
}
