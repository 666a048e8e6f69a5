package model

import "time"

// Session represents a scheduled screening of a movie in a
// particular room.  Sessions in the same room never overlap; the
// scheduling code that creates them guarantees this and the booking
// engine relies on it.
//
// Fields:
//
//	ID        – primary key identifier.
//	MovieID   – movie being screened.
//	RoomID    – room where the session takes place.
//	StartTime – when the session begins (UTC).
//	EndTime   – when the session ends (UTC).
type Session struct {
	ID        uint64    `db:"id"`         // sessions.id
	MovieID   uint64    `db:"movie_id"`   // sessions.movie_id
	RoomID    uint64    `db:"room_id"`    // sessions.room_id
	StartTime time.Time `db:"start_time"` // sessions.start_time
	EndTime   time.Time `db:"end_time"`   // sessions.end_time
}
