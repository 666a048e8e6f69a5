package model

// Seat describes a physical seat in a room.  Seats are
// uniquely identified by their room, row label and seat number
// and never move between rooms once seeded.
//
// Fields:
//
//	ID         – primary key identifier.
//	RoomID     – room to which this seat belongs.
//	RowLabel   – letter or string designating the row.
//	SeatNumber – number of the seat within the row.
type Seat struct {
	ID         uint64 `db:"id" json:"seat_id"`              // seats.id
	RoomID     uint64 `db:"room_id" json:"room_id"`         // seats.room_id
	RowLabel   string `db:"row_label" json:"row"`           // seats.row_label
	SeatNumber uint32 `db:"seat_number" json:"seat_number"` // seats.seat_number
}

// Label renders the seat the way tickets print it, e.g. "C7".
func (s Seat) Label() string {
	return SeatLabel(s.RowLabel, s.SeatNumber)
}
