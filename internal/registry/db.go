package registry

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// OpenDB opens a private in-memory database. Every connection to :memory: is
// its own database, so the pool is pinned to a single connection that is
// never recycled.
func OpenDB() (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
