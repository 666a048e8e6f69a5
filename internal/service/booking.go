// Package service holds the seat-booking engine: the lifecycle of a
// booking (create, confirm, cancel) and the read models built on top of it.
// All coordination between concurrent callers happens through the
// database; the services keep no mutable state of their own.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-booking/internal/logging"
	"github.com/iliyamo/cinema-seat-booking/internal/metrics"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// Clock returns the current instant.
type Clock func() time.Time

// ConfirmationPublisher announces confirmed bookings to other systems.
type ConfirmationPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// BookingService creates, confirms and cancels bookings.
type BookingService struct {
	db        *sqlx.DB
	bookings  *repository.BookingRepo
	sessions  *repository.SessionRepo
	seats     *repository.SeatRepo
	log       *logrus.Entry
	now       Clock
	isolation sql.IsolationLevel
	publisher ConfirmationPublisher
	metrics   *metrics.Metrics
	attempts  uint64
	retryBase time.Duration
}

// Option configures a BookingService.
type Option func(*BookingService)

// WithClock replaces the wall clock.  Tests use it to move past expiry.
func WithClock(c Clock) Option { return func(s *BookingService) { s.now = c } }

// WithIsolation sets the isolation level of booking transactions.
func WithIsolation(l sql.IsolationLevel) Option { return func(s *BookingService) { s.isolation = l } }

// WithPublisher sets where confirmation events go.
func WithPublisher(p ConfirmationPublisher) Option { return func(s *BookingService) { s.publisher = p } }

// WithMetrics records operation outcomes and sweep counts.
func WithMetrics(m *metrics.Metrics) Option { return func(s *BookingService) { s.metrics = m } }

// WithRetry sets how many times a transaction is run when it loses a
// lock, and the first pause between runs.
func WithRetry(attempts uint64, base time.Duration) Option {
	return func(s *BookingService) {
		if attempts < 1 {
			attempts = 1
		}
		if base <= 0 {
			base = time.Millisecond
		}
		s.attempts, s.retryBase = attempts, base
	}
}

// WithLogger sets the logger entry.
func WithLogger(l *logrus.Entry) Option { return func(s *BookingService) { s.log = l } }

// NewBookingService returns a BookingService over db.  Transactions run
// at SERIALIZABLE unless configured otherwise.
func NewBookingService(db *sqlx.DB, opts ...Option) *BookingService {
	s := &BookingService{
		db:        db,
		bookings:  repository.NewBookingRepo(db),
		sessions:  repository.NewSessionRepo(db),
		seats:     repository.NewSeatRepo(db),
		log:       logging.Discard(),
		now:       func() time.Time { return time.Now().UTC() },
		isolation: sql.LevelSerializable,
		attempts:  3,
		retryBase: 20 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateBookingInput is a request to hold seats for a session.
type CreateBookingInput struct {
	UserID    uint64
	SessionID uint64
	SeatIDs   []uint64
}

// CreatedBooking is the result of a successful hold.
type CreatedBooking struct {
	BookingID        uint64              `json:"booking_id"`
	Status           model.BookingStatus `json:"status"`
	ExpiresAt        time.Time           `json:"expires_at"`
	ExpiresInMinutes int                 `json:"expires_in_minutes"`
}

// Create holds the requested seats for the user as a new PENDING booking.
//
// Inside one transaction it sweeps expired holds, checks the session and
// that every seat belongs to its room, locks the live reservations of the
// requested seats and, when none exist, inserts the booking and one
// booking_seats row per seat.  A conflict found under the lock or a
// unique key violation surfaces as SeatTaken.  A transaction that loses a
// lock (deadlock, lock wait timeout) is re-run from the start; nothing is
// left behind on any failure.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (CreatedBooking, error) {
	const op = "booking.create"
	start := time.Now()
	out, err := s.create(ctx, op, in)
	s.observe(op, start, err)
	return out, err
}

func (s *BookingService) create(ctx context.Context, op string, in CreateBookingInput) (CreatedBooking, error) {
	seatIDs, err := validateCreate(op, in)
	if err != nil {
		return CreatedBooking{}, err
	}
	return retryTx(ctx, s, op, func(ctx context.Context) (CreatedBooking, error) {
		return s.createOnce(ctx, op, in, seatIDs)
	})
}

func (s *BookingService) createOnce(ctx context.Context, op string, in CreateBookingInput, seatIDs []uint64) (CreatedBooking, error) {
	now := s.now().UTC()
	log := s.log.WithFields(logrus.Fields{"op": op, "user_id": in.UserID, "session_id": in.SessionID})

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return CreatedBooking{}, internal(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	swept, err := s.bookings.SweepExpiredTx(ctx, tx, now)
	if err != nil {
		return CreatedBooking{}, s.storageErr(op, err)
	}

	sess, err := s.sessions.GetByIDTx(ctx, tx, in.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return CreatedBooking{}, invalidInput(op, "session not found")
		}
		return CreatedBooking{}, s.storageErr(op, err)
	}
	n, err := s.seats.CountInRoomTx(ctx, tx, sess.RoomID, seatIDs)
	if err != nil {
		return CreatedBooking{}, s.storageErr(op, err)
	}
	if n != len(seatIDs) {
		return CreatedBooking{}, invalidInput(op, "seats do not belong to the session's room")
	}

	taken, err := s.bookings.LockLiveSeatsTx(ctx, tx, in.SessionID, seatIDs, now)
	if err != nil {
		return CreatedBooking{}, s.storageErr(op, err)
	}
	if len(taken) > 0 {
		log.WithField("seat_ids", taken).Info("seats already held")
		return CreatedBooking{}, seatTaken(op, taken, nil)
	}

	b := &model.Booking{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		Status:    model.BookingPending,
		CreatedAt: now,
		ExpiresAt: now.Add(model.HoldDuration),
	}
	if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
		return CreatedBooking{}, s.storageErr(op, err)
	}
	rows := make([]model.BookingSeat, 0, len(seatIDs))
	for _, id := range seatIDs {
		rows = append(rows, model.BookingSeat{BookingID: b.ID, SessionID: in.SessionID, SeatID: id, Status: model.BookingPending})
	}
	if err := s.bookings.CreateSeatsBulkTx(ctx, tx, rows); err != nil {
		return CreatedBooking{}, s.storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return CreatedBooking{}, s.storageErr(op, err)
	}
	committed = true

	s.metrics.AddSwept(swept.Expired)
	log.WithFields(logrus.Fields{"booking_id": b.ID, "seat_ids": seatIDs, "swept": swept.Expired}).Info("booking held")
	return CreatedBooking{
		BookingID:        b.ID,
		Status:           b.Status,
		ExpiresAt:        b.ExpiresAt,
		ExpiresInMinutes: int(model.HoldDuration / time.Minute),
	}, nil
}

// Confirm turns the user's PENDING booking into CONFIRMED together with
// its seats.  Confirming an already confirmed booking returns it
// unchanged.  A booking that is missing, owned by someone else, cancelled,
// expired or past its deadline yields NotFound.
func (s *BookingService) Confirm(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	const op = "booking.confirm"
	start := time.Now()
	out, err := s.confirm(ctx, op, userID, bookingID)
	s.observe(op, start, err)
	return out, err
}

func (s *BookingService) confirm(ctx context.Context, op string, userID, bookingID uint64) (model.Booking, error) {
	if userID == 0 || bookingID == 0 {
		return model.Booking{}, notFound(op, "booking not found")
	}
	return retryTx(ctx, s, op, func(ctx context.Context) (model.Booking, error) {
		return s.confirmOnce(ctx, op, userID, bookingID)
	})
}

func (s *BookingService) confirmOnce(ctx context.Context, op string, userID, bookingID uint64) (model.Booking, error) {
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return model.Booking{}, internal(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return model.Booking{}, notFound(op, "booking not found")
		}
		return model.Booking{}, internal(op, err)
	}
	switch {
	case b.Status == model.BookingConfirmed:
		return *b, nil
	case b.Status != model.BookingPending:
		return model.Booking{}, notFound(op, "booking is no longer pending")
	case b.Expired(now):
		return model.Booking{}, notFound(op, "booking has expired")
	}

	if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingConfirmed); err != nil {
		return model.Booking{}, internal(op, err)
	}
	if _, err := s.bookings.UpdateSeatsStatusTx(ctx, tx, b.ID, model.BookingConfirmed); err != nil {
		return model.Booking{}, internal(op, err)
	}
	seats, err := s.bookings.SeatsTx(ctx, tx, b.ID)
	if err != nil {
		return model.Booking{}, internal(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, internal(op, err)
	}
	committed = true
	b.Status = model.BookingConfirmed

	s.log.WithFields(logrus.Fields{"op": op, "booking_id": b.ID, "user_id": userID}).Info("booking confirmed")
	s.publishConfirmed(ctx, *b, seats, now)
	return *b, nil
}

// publishConfirmed emits the confirmation event.  The booking is already
// committed, so a broker failure is logged and otherwise ignored.
func (s *BookingService) publishConfirmed(ctx context.Context, b model.Booking, seats []repository.BookedSeat, at time.Time) {
	if s.publisher == nil {
		return
	}
	ids := make([]uint64, 0, len(seats))
	labels := make([]string, 0, len(seats))
	for _, st := range seats {
		ids = append(ids, st.SeatID)
		labels = append(labels, model.SeatLabel(st.RowLabel, st.SeatNumber))
	}
	ev := queue.NewBookingConfirmedEvent(b.ID, b.UserID, b.SessionID, ids, labels, at)
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("booking.confirmed not published")
	}
}

// Cancel releases the user's booking: its seats are deleted and a PENDING
// or CONFIRMED booking becomes CANCELLED.  A booking that is already
// cancelled or expired keeps its status and only has leftover seats
// cleared.  The boolean reports whether the booking existed.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID uint64) (bool, error) {
	const op = "booking.cancel"
	start := time.Now()
	ok, err := s.cancel(ctx, op, userID, bookingID)
	if err == nil && !ok {
		s.metrics.ObserveOp(op, metrics.OutcomeMissing, time.Since(start))
		return false, nil
	}
	s.observe(op, start, err)
	return ok, err
}

func (s *BookingService) cancel(ctx context.Context, op string, userID, bookingID uint64) (bool, error) {
	if userID == 0 || bookingID == 0 {
		return false, nil
	}
	return retryTx(ctx, s, op, func(ctx context.Context) (bool, error) {
		return s.cancelOnce(ctx, op, userID, bookingID)
	})
}

func (s *BookingService) cancelOnce(ctx context.Context, op string, userID, bookingID uint64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return false, internal(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return false, nil
		}
		return false, internal(op, err)
	}
	released, err := s.bookings.DeleteSeatsTx(ctx, tx, b.ID)
	if err != nil {
		return false, internal(op, err)
	}
	if model.CanTransition(b.Status, model.BookingCancelled) {
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCancelled); err != nil {
			return false, internal(op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, internal(op, err)
	}
	committed = true

	s.log.WithFields(logrus.Fields{
		"op": op, "booking_id": b.ID, "user_id": userID, "from": b.Status, "released_seats": released,
	}).Info("booking cancelled")
	return true, nil
}

// storageErr classifies a failure inside a create transaction.  A unique
// key violation means another booking got the seat first.  Lock failures
// stay Internal so retryTx can re-run the transaction.
func (s *BookingService) storageErr(op string, err error) error {
	if repository.IsDuplicateKey(err) {
		return seatTaken(op, nil, err)
	}
	return internal(op, err)
}

// retryTx runs fn until it succeeds, fails for a reason other than a lost
// lock, or runs out of attempts.  Each run is a fresh transaction, so a
// caller that really lost the race sees the winner's rows under the lock
// on the next run.
func retryTx[T any](ctx context.Context, s *BookingService, op string, fn func(context.Context) (T, error)) (T, error) {
	backoff := retry.WithMaxRetries(s.attempts-1, retry.WithJitterPercent(50, retry.NewExponential(s.retryBase)))
	attempt := 0
	v, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attempt++
		v, err := fn(ctx)
		if err != nil && repository.IsDeadlock(err) {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "attempt": attempt}).Warn("transaction lost a lock")
			return v, retry.RetryableError(err)
		}
		return v, err
	})
	var e *Error
	if err != nil && !errors.As(err, &e) {
		return v, internal(op, err)
	}
	return v, err
}

func (s *BookingService) observe(op string, start time.Time, err error) {
	if err != nil && KindOf(err) == Internal {
		s.log.WithError(err).WithField("op", op).Error("booking operation failed")
	}
	s.metrics.ObserveOp(op, outcome(err), time.Since(start))
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch KindOf(err) {
	case InvalidInput:
		return metrics.OutcomeInvalid
	case SeatTaken:
		return metrics.OutcomeTaken
	case NotFound:
		return metrics.OutcomeMissing
	}
	return metrics.OutcomeError
}

// validateCreate checks the request shape and returns the seat IDs with
// duplicates removed, in first-seen order.
func validateCreate(op string, in CreateBookingInput) ([]uint64, error) {
	if in.UserID == 0 {
		return nil, invalidInput(op, "user_id is required")
	}
	if in.SessionID == 0 {
		return nil, invalidInput(op, "session_id must be a positive integer")
	}
	if len(in.SeatIDs) == 0 {
		return nil, invalidInput(op, "seat_ids must be a non-empty array")
	}
	seen := make(map[uint64]struct{}, len(in.SeatIDs))
	out := make([]uint64, 0, len(in.SeatIDs))
	for _, id := range in.SeatIDs {
		if id == 0 {
			return nil, invalidInput(op, "seat_ids must contain positive integers")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
