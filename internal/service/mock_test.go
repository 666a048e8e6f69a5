package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/metrics"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
)

var (
	t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	sessionCols = []string{"id", "movie_id", "room_id", "start_time", "end_time"}
	bookingCols = []string{"id", "user_id", "session_id", "status", "created_at", "expires_at"}
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func q(fragment string) string { return regexp.QuoteMeta(fragment) }

func fixedClock(at time.Time) Clock { return func() time.Time { return at } }

func expectSweep(mock sqlmock.Sqlmock, expired, released int64) {
	mock.ExpectExec(q("UPDATE bookings SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at <= ?")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, expired))
	mock.ExpectExec(q("DELETE bs FROM booking_seats bs")).
		WillReturnResult(sqlmock.NewResult(0, released))
}

func expectSession(mock sqlmock.Sqlmock, sessionID, roomID uint64) {
	mock.ExpectQuery(q("FROM sessions WHERE id = ?")).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow(sessionID, 1, roomID, t0.Add(2*time.Hour), t0.Add(4*time.Hour)))
}

func expectBooking(mock sqlmock.Sqlmock, id, userID uint64, status string, expiresAt time.Time) {
	mock.ExpectQuery(q("FROM bookings WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(id, userID).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(id, userID, 11, status, expiresAt.Add(-10*time.Minute), expiresAt))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// counterValue sums the samples of a counter family on the registry.
func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, s := range f.GetMetric() {
			total += s.GetCounter().GetValue()
		}
	}
	return total
}
