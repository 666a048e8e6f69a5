package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers.  Handlers switch on the kind and
// never on error text.
type Kind uint8

const (
	// Internal is an unexpected storage or runtime failure.  Any error
	// that is not a *Error is treated as Internal.
	Internal Kind = iota
	// InvalidInput means the request was malformed.  No transaction was
	// committed on its behalf.
	InvalidInput
	// SeatTaken means at least one requested seat already has a live
	// reservation.  The transaction was rolled back and the caller may
	// retry with other seats.
	SeatTaken
	// NotFound means the booking does not exist, belongs to another
	// user, or can no longer be confirmed because its hold lapsed.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "INVALID_INPUT"
	case SeatTaken:
		return "SEAT_TAKEN"
	case NotFound:
		return "NOT_FOUND"
	}
	return "INTERNAL"
}

// Error is the error type returned by the booking services.
type Error struct {
	Kind    Kind
	Op      string   // operation that failed, e.g. "booking.create"
	Msg     string   // safe to show to clients
	SeatIDs []uint64 // conflicting seats, set for SeatTaken when known
	Err     error    // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// SeatIDsOf returns the conflicting seat IDs carried by a SeatTaken error.
func SeatIDsOf(err error) []uint64 {
	var e *Error
	if errors.As(err, &e) {
		return e.SeatIDs
	}
	return nil
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return KindOf(err).String()
}

func invalidInput(op, msg string) error {
	return &Error{Kind: InvalidInput, Op: op, Msg: msg}
}

func notFound(op, msg string) error {
	return &Error{Kind: NotFound, Op: op, Msg: msg}
}

func seatTaken(op string, seatIDs []uint64, err error) error {
	return &Error{Kind: SeatTaken, Op: op, Msg: "one or more seats are not available", SeatIDs: seatIDs, Err: err}
}

func internal(op string, err error) error {
	return &Error{Kind: Internal, Op: op, Err: err}
}
