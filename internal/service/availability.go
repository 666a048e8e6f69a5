package service

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// SeatAvailability is one seat of a session's room with its status.
type SeatAvailability struct {
	SeatID     uint64           `json:"seat_id"`
	Row        string           `json:"row"`
	SeatNumber uint32           `json:"seat_number"`
	Status     model.SeatStatus `json:"status"`
}

// SeatService answers "which seats of this session are free".  It only
// reads and takes no locks, so it is cheap enough for polling.
type SeatService struct {
	sessions     *repository.SessionRepo
	seats        *repository.SeatRepo
	reservations *repository.ReservationRepo
	now          Clock
}

// NewSeatService returns a SeatService over db.  A nil clock means the
// wall clock.
func NewSeatService(db *sqlx.DB, now Clock) *SeatService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SeatService{
		sessions:     repository.NewSessionRepo(db),
		seats:        repository.NewSeatRepo(db),
		reservations: repository.NewReservationRepo(db),
		now:          now,
	}
}

// ForSession lists every seat of the session's room ordered by row label
// then seat number.  A seat is TAKEN when it has a live reservation;
// PENDING holds past their deadline count as AVAILABLE even if the sweep
// has not removed them yet.
func (s *SeatService) ForSession(ctx context.Context, sessionID uint64) ([]SeatAvailability, error) {
	const op = "seats.for_session"
	if sessionID == 0 {
		return nil, notFound(op, "session not found")
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, notFound(op, "session not found")
		}
		return nil, internal(op, err)
	}
	seats, err := s.seats.ListByRoom(ctx, sess.RoomID)
	if err != nil {
		return nil, internal(op, err)
	}
	rows, err := s.reservations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, internal(op, err)
	}

	now := s.now().UTC()
	taken := make(map[uint64]bool, len(rows))
	for _, r := range rows {
		if model.ReservationLive(r.Status, r.ExpiresAt, now) {
			taken[r.SeatID] = true
		}
	}

	out := make([]SeatAvailability, 0, len(seats))
	for _, st := range seats {
		status := model.SeatAvailable
		if taken[st.ID] {
			status = model.SeatTaken
		}
		out = append(out, SeatAvailability{SeatID: st.ID, Row: st.RowLabel, SeatNumber: st.SeatNumber, Status: status})
	}
	return out, nil
}
