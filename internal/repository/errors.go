// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between "nothing there" and storage failures without
// inspecting driver messages.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrBookingNotFound is returned when a booking lookup yields no rows,
// including lookups scoped to a user that does not own the booking.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSessionNotFound is returned when a session lookup yields no rows.
var ErrSessionNotFound = errors.New("session not found")

// MySQL server error numbers the booking flow reacts to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsDuplicateKey reports whether err is a unique-constraint violation.
func IsDuplicateKey(err error) bool {
	return mysqlErrorNumber(err) == mysqlDuplicateEntry
}

// IsDeadlock reports whether err means InnoDB gave up on a lock: either
// the transaction was picked as a deadlock victim or it waited too long.
// Either way the transaction has lost a race for the same rows.
func IsDeadlock(err error) bool {
	n := mysqlErrorNumber(err)
	return n == mysqlDeadlock || n == mysqlLockWaitTimeout
}

func mysqlErrorNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}
