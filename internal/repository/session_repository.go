package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// SessionRepo reads the scheduling data the booking engine depends on:
// which room a session runs in and when.  Sessions are written by the
// scheduling service, never by this repository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `SELECT id, movie_id, room_id, start_time, end_time FROM sessions WHERE id = ?`

// GetByID retrieves a session by its ID.  It returns ErrSessionNotFound
// if there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	return getSession(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *SessionRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Session, error) {
	return getSession(ctx, tx, id)
}

func getSession(ctx context.Context, q sqlx.QueryerContext, id uint64) (*model.Session, error) {
	var s model.Session
	if err := sqlx.GetContext(ctx, q, &s, sessionColumns, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}
