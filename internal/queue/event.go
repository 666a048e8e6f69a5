// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer for them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// BookingConfirmedQueue is the durable queue confirmation events go to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking is successfully confirmed.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.  EventID is
// unique per publish so consumers can drop redeliveries.
type BookingConfirmedEvent struct {
	EventID     string    `json:"event_id"`
	BookingID   uint64    `json:"booking_id"`
	UserID      uint64    `json:"user_id"`
	SessionID   uint64    `json:"session_id"`
	SeatIDs     []uint64  `json:"seat_ids"`
	Seats       []string  `json:"seats"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// NewBookingConfirmedEvent stamps a fresh event ID on the payload.
func NewBookingConfirmedEvent(bookingID, userID, sessionID uint64, seatIDs []uint64, seats []string, at time.Time) BookingConfirmedEvent {
	if seatIDs == nil {
		seatIDs = []uint64{}
	}
	if seats == nil {
		seats = []string{}
	}
	return BookingConfirmedEvent{
		EventID:     uuid.NewString(),
		BookingID:   bookingID,
		UserID:      userID,
		SessionID:   sessionID,
		SeatIDs:     seatIDs,
		Seats:       seats,
		ConfirmedAt: at.UTC(),
	}
}
