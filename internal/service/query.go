package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// BookedSeatView is a seat as printed on a ticket.
type BookedSeatView struct {
	SeatID uint64 `json:"seat_id"`
	Row    string `json:"row"`
	Number uint32 `json:"number"`
}

// BookingView is one entry of a user's ticket list.
type BookingView struct {
	BookingID  uint64              `json:"booking_id"`
	SessionID  uint64              `json:"session_id"`
	Status     model.BookingStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
	MovieTitle string              `json:"movie_title"`
	ImageURL   *string             `json:"image_url"`
	RoomName   string              `json:"room_name"`
	StartTime  time.Time           `json:"start_time"`
	Seats      []BookedSeatView    `json:"seats"`
}

// BookingQueryService builds the "my tickets" read model.  It never writes.
type BookingQueryService struct {
	views *repository.BookingViewRepo
	now   Clock
}

// NewBookingQueryService returns a BookingQueryService over db.  A nil
// clock means the wall clock.
func NewBookingQueryService(db *sqlx.DB, now Clock) *BookingQueryService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &BookingQueryService{views: repository.NewBookingViewRepo(db), now: now}
}

// ListForUser returns the user's bookings, newest first.  PENDING bookings
// past their deadline are reported as EXPIRED.  Bookings whose seats were
// released are still listed, with an empty seat list.
func (s *BookingQueryService) ListForUser(ctx context.Context, userID uint64) ([]BookingView, error) {
	const op = "booking.list"
	if userID == 0 {
		return []BookingView{}, nil
	}
	rows, err := s.views.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal(op, err)
	}
	now := s.now().UTC()
	out := make([]BookingView, 0, len(rows))
	for _, r := range rows {
		v := BookingView{
			BookingID:  r.ID,
			SessionID:  r.SessionID,
			Status:     r.DisplayStatus(now),
			CreatedAt:  r.CreatedAt,
			ExpiresAt:  r.ExpiresAt,
			MovieTitle: r.MovieTitle,
			RoomName:   r.RoomName,
			StartTime:  r.StartTime,
			Seats:      make([]BookedSeatView, 0, len(r.Seats)),
		}
		if r.ImageURL.Valid {
			url := r.ImageURL.String
			v.ImageURL = &url
		}
		for _, st := range r.Seats {
			v.Seats = append(v.Seats, BookedSeatView{SeatID: st.SeatID, Row: st.RowLabel, Number: st.SeatNumber})
		}
		out = append(out, v)
	}
	return out, nil
}
