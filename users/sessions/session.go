package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Session represents an active user session. Sessions are stored in the
// database and referenced by their ID; the row is authoritative, so a
// deleted session is dead even if the client still holds its cookie.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// NewSession creates a new session instance with a unique ID.
func NewSession(userID int, expiry time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
}

func (s *Session) Expired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// --- Database Methods ---

func DBGetSessionByID(db *sqlx.DB, id string) (*Session, error) {
	var s Session
	err := db.Get(&s, "SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1", id)
	return &s, err
}

func (s *Session) DBCreate(db *sqlx.DB) error {
	_, err := db.Exec("INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)",
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	return err
}

func (s *Session) DBDelete(db *sqlx.DB) error {
	_, err := db.Exec("DELETE FROM sessions WHERE id = $1", s.ID)
	return err
}

func DBDeleteExpiredSessions(db *sqlx.DB) error {
	_, err := db.Exec("DELETE FROM sessions WHERE expires_at < $1", time.Now().UTC())
	return err
}
