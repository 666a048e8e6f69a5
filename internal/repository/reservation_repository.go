package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// ReservationRepo reads the seat-level booking state of a session.  It
// never locks and never writes, so it can back availability polling.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// SeatReservation is one booking_seats row of a session together with the
// expiry of its parent booking.
type SeatReservation struct {
	SeatID    uint64              `db:"seat_id"`
	Status    model.BookingStatus `db:"status"`
	ExpiresAt time.Time           `db:"expires_at"`
}

// ListBySession returns every booking_seats row recorded for a session,
// live or not.  Deciding liveness is left to the caller so that expired
// holds are treated as free without being rewritten here.
func (r *ReservationRepo) ListBySession(ctx context.Context, sessionID uint64) ([]SeatReservation, error) {
	const q = `SELECT bs.seat_id, bs.status, b.expires_at
	           FROM booking_seats bs
	           JOIN bookings b ON b.id = bs.booking_id
	           WHERE bs.session_id = ?`
	out := []SeatReservation{}
	if err := r.db.SelectContext(ctx, &out, q, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}
