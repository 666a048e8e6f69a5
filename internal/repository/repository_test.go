package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

var now = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestErrorClassification(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert seats: %w", dup)))
	assert.False(t, IsDeadlock(dup))

	assert.True(t, IsDeadlock(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsDeadlock(fmt.Errorf("lock seats: %w", &mysql.MySQLError{Number: 1205})))

	plain := errors.New("Error 1062: Duplicate entry")
	assert.False(t, IsDuplicateKey(plain))
	assert.False(t, IsDeadlock(nil))
}

func TestSweepExpiredTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE bookings SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at <= ?")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE bs FROM booking_seats bs JOIN bookings b ON b.id = bs.booking_id WHERE b.status = 'EXPIRED'")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	res, err := repo.SweepExpiredTx(context.Background(), tx, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Expired: 2, ReleasedSeats: 5}, res)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockLiveSeatsTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("AND bs.seat_id IN (?, ?, ?)") + ".*" + q("b.expires_at > ?") + ".*" + q("FOR UPDATE")).
		WithArgs(11, 1, 2, 3, now).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow(2))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	taken, err := repo.LockLiveSeatsTx(context.Background(), tx, 11, []uint64{1, 2, 3}, now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, taken)

	none, err := repo.LockLiveSeatsTx(context.Background(), tx, 11, nil, now)
	require.NoError(t, err)
	assert.Empty(t, none)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTxAndSeats(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs(3, 11, "PENDING", now, now.Add(model.HoldDuration)).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(q("INSERT INTO booking_seats (booking_id, session_id, seat_id, status) VALUES (?, ?, ?, ?)")).
		WithArgs(42, 11, 1, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	b := &model.Booking{UserID: 3, SessionID: 11, Status: model.BookingPending, CreatedAt: now, ExpiresAt: now.Add(model.HoldDuration)}
	require.NoError(t, repo.CreateTx(context.Background(), tx, b))
	assert.Equal(t, uint64(42), b.ID)

	require.NoError(t, repo.CreateSeatsBulkTx(context.Background(), tx, nil))
	require.NoError(t, repo.CreateSeatsBulkTx(context.Background(), tx, []model.BookingSeat{
		{BookingID: 42, SessionID: 11, SeatID: 1, Status: model.BookingPending},
	}))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdateTx_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM bookings WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(7, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "session_id", "status", "created_at", "expires_at"}))
	mock.ExpectExec(q("UPDATE bookings SET status = ? WHERE id = ?")).
		WithArgs("CANCELLED", 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = repo.GetForUpdateTx(context.Background(), tx, 7, 3)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	err = repo.UpdateStatusTx(context.Background(), tx, 7, model.BookingCancelled)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM sessions WHERE id = ?")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "room_id", "start_time", "end_time"}))

	_, err := NewSessionRepo(db).GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_ListByRoomEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM seats WHERE room_id = ?")).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "row_label", "seat_number"}))

	seats, err := NewSeatRepo(db).ListByRoom(context.Background(), 9)
	require.NoError(t, err)
	assert.NotNil(t, seats)
	assert.Empty(t, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingViewRepo_SeatsGroupedPerBooking(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM bookings b")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "session_id", "status", "created_at", "expires_at",
			"movie_title", "image_url", "room_name", "start_time",
		}).
			AddRow(2, 3, 11, "CANCELLED", now, now, "Alien", nil, "Room 2", now).
			AddRow(1, 3, 11, "CONFIRMED", now, now, "Alien", nil, "Room 2", now))
	mock.ExpectQuery(q("WHERE bs.booking_id IN (?, ?)")).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "seat_id", "row_label", "seat_number"}).
			AddRow(1, 4, "C", 7))

	rows, err := NewBookingViewRepo(db).ListByUser(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].Seats)
	assert.NotNil(t, rows[0].Seats)
	assert.Equal(t, []BookedSeat{{SeatID: 4, RowLabel: "C", SeatNumber: 7}}, rows[1].Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
