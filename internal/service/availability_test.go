package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func TestForSession(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewSeatService(db, fixedClock(t0))

	expectSession(mock, 11, 5)
	mock.ExpectQuery(q("FROM seats WHERE room_id = ? ORDER BY row_label, seat_number")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "row_label", "seat_number"}).
			AddRow(1, 5, "A", 1).
			AddRow(2, 5, "A", 2).
			AddRow(3, 5, "A", 3).
			AddRow(4, 5, "B", 1))
	mock.ExpectQuery(q("FROM booking_seats bs JOIN bookings b ON b.id = bs.booking_id WHERE bs.session_id = ?")).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "status", "expires_at"}).
			AddRow(1, "CONFIRMED", t0.Add(-time.Hour)).
			AddRow(2, "PENDING", t0.Add(time.Minute)).
			AddRow(3, "PENDING", t0.Add(-time.Second)))

	seats, err := svc.ForSession(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, seats, 4)

	got := map[uint64]model.SeatStatus{}
	for _, s := range seats {
		got[s.SeatID] = s.Status
	}
	assert.Equal(t, model.SeatTaken, got[1])     // confirmed
	assert.Equal(t, model.SeatTaken, got[2])     // live hold
	assert.Equal(t, model.SeatAvailable, got[3]) // lapsed hold, not yet swept
	assert.Equal(t, model.SeatAvailable, got[4]) // never booked

	assert.Equal(t, SeatAvailability{SeatID: 4, Row: "B", SeatNumber: 1, Status: model.SeatAvailable}, seats[3])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForSession_UnknownSession(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewSeatService(db, fixedClock(t0))

	mock.ExpectQuery(q("FROM sessions WHERE id = ?")).WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := svc.ForSession(context.Background(), 404)
	assert.Equal(t, NotFound, KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
