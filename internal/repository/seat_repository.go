package repository // repository defines data access for seats

import (
	"context" // context allows query cancellation and timeouts
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// SeatRepo provides read access to the seat layout of rooms.  Seats are
// seeded administratively and are immutable from the booking engine's
// point of view.
type SeatRepo struct {
	db *sqlx.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sqlx.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// ListByRoom retrieves all seats of a room ordered by row_label then
// seat_number.  An empty room yields an empty, non-nil slice.
func (r *SeatRepo) ListByRoom(ctx context.Context, roomID uint64) ([]model.Seat, error) {
	const q = `SELECT id, room_id, row_label, seat_number
	           FROM seats
	           WHERE room_id = ?
	           ORDER BY row_label, seat_number`
	seats := []model.Seat{}
	if err := r.db.SelectContext(ctx, &seats, q, roomID); err != nil {
		return nil, err
	}
	return seats, nil
}

// CountInRoomTx counts how many of seatIDs belong to roomID.  Callers
// compare the result with len(seatIDs) to reject seats from other rooms
// or seats that do not exist.
func (r *SeatRepo) CountInRoomTx(ctx context.Context, tx *sqlx.Tx, roomID uint64, seatIDs []uint64) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM seats WHERE room_id = ? AND id IN (?)`, roomID, seatIDs)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count room seats: %w", err)
	}
	return n, nil
}
