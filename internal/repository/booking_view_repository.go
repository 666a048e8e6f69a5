package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingViewRepo assembles the "my tickets" read model: bookings joined
// with their session, movie and room, plus the seats still attached to
// each booking.  It is read-only.
type BookingViewRepo struct {
	db *sqlx.DB
}

// NewBookingViewRepo returns a new BookingViewRepo bound to the given database.
func NewBookingViewRepo(db *sqlx.DB) *BookingViewRepo { return &BookingViewRepo{db: db} }

// BookingRow is a booking with the session, movie and room details shown
// next to it.  Status is the stored status; display overrides are
// applied by the service layer.
type BookingRow struct {
	model.Booking
	MovieTitle string         `db:"movie_title"`
	ImageURL   sql.NullString `db:"image_url"`
	RoomName   string         `db:"room_name"`
	StartTime  time.Time      `db:"start_time"`
	Seats      []BookedSeat   `db:"-"`
}

// ListByUser returns all bookings of a user, newest first, each with the
// seats still attached to it.  Bookings whose seats were released
// (cancelled or expired) come back with an empty, non-nil Seats slice.
func (r *BookingViewRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingRow, error) {
	// First fetch high-level booking info and related session/movie/room details
	const q = `SELECT b.id, b.user_id, b.session_id, b.status, b.created_at, b.expires_at,
	                  m.title AS movie_title, m.image_url, r.name AS room_name, s.start_time
	           FROM bookings b
	           JOIN sessions s ON s.id = b.session_id
	           JOIN movies m ON m.id = s.movie_id
	           JOIN rooms r ON r.id = s.room_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC, b.id DESC`
	rows := []BookingRow{}
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}
	// Keep track of index by booking ID for quick lookup
	index := make(map[uint64]int, len(rows))
	ids := make([]uint64, 0, len(rows))
	for i := range rows {
		rows[i].Seats = []BookedSeat{}
		index[rows[i].ID] = i
		ids = append(ids, rows[i].ID)
	}

	// Fetch seats for all bookings in one query
	query, args, err := sqlx.In(
		`SELECT bs.booking_id, bs.seat_id, se.row_label, se.seat_number
		 FROM booking_seats bs
		 JOIN seats se ON se.id = bs.seat_id
		 WHERE bs.booking_id IN (?)
		 ORDER BY bs.booking_id, se.row_label, se.seat_number`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	var seats []struct {
		BookingID uint64 `db:"booking_id"`
		BookedSeat
	}
	if err := r.db.SelectContext(ctx, &seats, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, s := range seats {
		idx, ok := index[s.BookingID]
		if !ok {
			continue
		}
		rows[idx].Seats = append(rows[idx].Seats, s.BookedSeat)
	}
	return rows, nil
}
