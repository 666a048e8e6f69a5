package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options carries the connection parameters for MySQL.
type Options struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// DSN builds the driver connection string.  parseTime=true maps DATETIME
// to time.Time and loc=UTC keeps every timestamp an absolute UTC instant.
func (o Options) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Pass
	cfg.Net = "tcp"
	cfg.Addr = o.Host + ":" + o.Port
	cfg.DBName = o.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sqlx.DB, error) {
	return OpenDSN(o.DSN())
}

// OpenDSN is Open for callers that already hold a DSN (tests, tooling).
func OpenDSN(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
