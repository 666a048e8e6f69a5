package model

import (
	"strconv"
	"time"
)

// HoldDuration is how long a PENDING booking keeps its seats before it
// lapses.  It is fixed at creation and never extended.
const HoldDuration = 10 * time.Minute

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingExpired
}

// CanTransition reports whether a booking may move from one status to
// another.  The allowed edges are PENDING->CONFIRMED, PENDING->EXPIRED,
// PENDING->CANCELLED and CONFIRMED->CANCELLED.
func CanTransition(from, to BookingStatus) bool {
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingExpired || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingCancelled
	}
	return false
}

// Booking records a user's hold or purchase of one or more seats for a
// session.  A booking and its BookingSeat rows are always written in
// the same transaction.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – user who created the booking.
//	SessionID – session being booked.
//	Status    – PENDING, CONFIRMED, CANCELLED or EXPIRED.
//	CreatedAt – creation timestamp (UTC).
//	ExpiresAt – CreatedAt + HoldDuration; meaningful while PENDING.
type Booking struct {
	ID        uint64        `db:"id" json:"booking_id"`         // bookings.id
	UserID    uint64        `db:"user_id" json:"user_id"`       // bookings.user_id
	SessionID uint64        `db:"session_id" json:"session_id"` // bookings.session_id
	Status    BookingStatus `db:"status" json:"status"`         // bookings.status
	CreatedAt time.Time     `db:"created_at" json:"created_at"` // bookings.created_at
	ExpiresAt time.Time     `db:"expires_at" json:"expires_at"` // bookings.expires_at
}

// Expired reports whether the booking is a PENDING hold whose deadline
// has passed at now.  The stored status may still read PENDING until
// the next sweep runs.
func (b Booking) Expired(now time.Time) bool {
	return b.Status == BookingPending && !now.Before(b.ExpiresAt)
}

// DisplayStatus is the status shown to users: an overdue PENDING hold
// reads as EXPIRED even before it has been swept.
func (b Booking) DisplayStatus(now time.Time) BookingStatus {
	if b.Expired(now) {
		return BookingExpired
	}
	return b.Status
}

// BookingSeat binds one seat of a session to a booking.  Its Status
// mirrors the parent booking (PENDING or CONFIRMED); cancelled and
// expired bookings have their seat rows deleted instead.
type BookingSeat struct {
	ID        uint64        `db:"id"`         // booking_seats.id
	BookingID uint64        `db:"booking_id"` // booking_seats.booking_id
	SessionID uint64        `db:"session_id"` // booking_seats.session_id
	SeatID    uint64        `db:"seat_id"`    // booking_seats.seat_id
	Status    BookingStatus `db:"status"`     // booking_seats.status
}

// SeatStatus is the availability of a seat for a session.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatTaken     SeatStatus = "TAKEN"
)

// ReservationLive reports whether a booking_seats row still reserves its
// seat at now: CONFIRMED rows always do, PENDING rows only until the
// parent booking's expires_at.
func ReservationLive(status BookingStatus, expiresAt, now time.Time) bool {
	switch status {
	case BookingConfirmed:
		return true
	case BookingPending:
		return expiresAt.After(now)
	}
	return false
}

// SeatLabel joins a row label and seat number ("B", 4 -> "B4").
func SeatLabel(row string, number uint32) string {
	return row + strconv.FormatUint(uint64(number), 10)
}
