package database

// Database is a service that manages the SQL connection and initializes the
// schema on startup.

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user'
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMP NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
`

type Database struct {
	db *sqlx.DB
}

// Connect creates a new database connection and initializes the database
// schema. The UNIQUE constraint on username is the backstop against
// concurrent duplicate registration; callers never pre-check.
func Connect(driverName string, dataSourceName string) (*Database, error) {
	// Foreign-key enforcement is per-connection in SQLite, so it must be
	// part of the DSN rather than a one-shot PRAGMA; otherwise connections
	// the pool opens later run without it and user deletes leave orphan
	// session rows.
	if driverName == "sqlite3" {
		dataSourceName = withForeignKeys(dataSourceName)
	}
	db, err := sqlx.Connect(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Database{db: db}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func (d *Database) GetDB() *sqlx.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.db.Close()
}
