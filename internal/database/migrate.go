package database

import (
	"context"
	"embed"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all embedded schema migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.New("nil db provided")
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db.DB, "migrations")
}
