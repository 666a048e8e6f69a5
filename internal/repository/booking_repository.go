package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingRepo provides data access to the bookings and booking_seats
// tables.  Every mutating method runs inside a transaction supplied by
// the caller, who is responsible for committing or rolling it back.
// Timestamps are passed in explicitly (UTC) rather than read from the
// database clock so that expiry decisions use a single notion of now.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// spanning several repositories.
func (r *BookingRepo) DB() *sqlx.DB { return r.db }

// SweepResult reports what SweepExpiredTx changed.
type SweepResult struct {
	Expired       int64 // bookings flipped from PENDING to EXPIRED
	ReleasedSeats int64 // booking_seats rows deleted
}

// SweepExpiredTx marks every PENDING booking whose expires_at is at or
// before now as EXPIRED and deletes the booking_seats rows of expired
// bookings, releasing their seats.  It is safe to call when nothing has
// expired; both counts are zero in that case.
func (r *BookingRepo) SweepExpiredTx(ctx context.Context, tx *sqlx.Tx, now time.Time) (SweepResult, error) {
	var out SweepResult
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return out, fmt.Errorf("expire pending bookings: %w", err)
	}
	out.Expired, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`DELETE bs FROM booking_seats bs
		 JOIN bookings b ON b.id = bs.booking_id
		 WHERE b.status = 'EXPIRED'`,
	)
	if err != nil {
		return out, fmt.Errorf("release expired seats: %w", err)
	}
	out.ReleasedSeats, _ = res.RowsAffected()
	return out, nil
}

// LockLiveSeatsTx takes row locks on the live booking_seats rows for the
// given seats of a session and returns the seat IDs it found.  A row is
// live when it is CONFIRMED, or PENDING with a parent booking that has
// not expired at now.  A non-empty result means the seats are taken.
func (r *BookingRepo) LockLiveSeatsTx(ctx context.Context, tx *sqlx.Tx, sessionID uint64, seatIDs []uint64, now time.Time) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT bs.seat_id
		 FROM booking_seats bs
		 JOIN bookings b ON b.id = bs.booking_id
		 WHERE bs.session_id = ?
		   AND bs.seat_id IN (?)
		   AND (bs.status = 'CONFIRMED' OR (bs.status = 'PENDING' AND b.expires_at > ?))
		 ORDER BY bs.seat_id
		 FOR UPDATE`,
		sessionID, seatIDs, now.UTC(),
	)
	if err != nil {
		return nil, err
	}
	taken := []uint64{}
	if err := tx.SelectContext(ctx, &taken, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	return taken, nil
}

// CreateTx inserts a new booking and populates its generated ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, session_id, status, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.SessionID, b.Status, b.CreatedAt.UTC(), b.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CreateSeatsBulkTx inserts multiple booking_seats rows in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreateSeatsBulkTx(ctx context.Context, tx *sqlx.Tx, seats []model.BookingSeat) error {
	if len(seats) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO booking_seats (booking_id, session_id, seat_id, status) VALUES `)
	args := make([]interface{}, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, s.BookingID, s.SessionID, s.SeatID, s.Status)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetForUpdateTx loads a booking owned by userID and locks its row until
// the transaction ends.  It returns ErrBookingNotFound when the booking
// does not exist or belongs to someone else.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, bookingID, userID uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, session_id, status, created_at, expires_at
	           FROM bookings
	           WHERE id = ? AND user_id = ?
	           FOR UPDATE`
	var b model.Booking
	if err := tx.GetContext(ctx, &b, q, bookingID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateStatusTx sets the status of a booking.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64, status model.BookingStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, bookingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// UpdateSeatsStatusTx cascades a status onto every booking_seats row of a
// booking and returns how many rows were touched.
func (r *BookingRepo) UpdateSeatsStatusTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64, status model.BookingStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE booking_seats SET status = ? WHERE booking_id = ?`, status, bookingID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteSeatsTx removes every booking_seats row of a booking, releasing
// its seats, and returns how many rows were deleted.
func (r *BookingRepo) DeleteSeatsTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, bookingID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// BookedSeat is a seat held by a booking together with its position.
type BookedSeat struct {
	SeatID     uint64 `db:"seat_id"`
	RowLabel   string `db:"row_label"`
	SeatNumber uint32 `db:"seat_number"`
}

// SeatsTx lists the seats currently attached to a booking, ordered by row
// label then seat number.
func (r *BookingRepo) SeatsTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64) ([]BookedSeat, error) {
	const q = `SELECT bs.seat_id, se.row_label, se.seat_number
	           FROM booking_seats bs
	           JOIN seats se ON se.id = bs.seat_id
	           WHERE bs.booking_id = ?
	           ORDER BY se.row_label, se.seat_number`
	seats := []BookedSeat{}
	if err := tx.SelectContext(ctx, &seats, q, bookingID); err != nil {
		return nil, err
	}
	return seats, nil
}
