package sessions

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"userAuthService/database"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid session token")
)

// Manager handles the lifecycle of user sessions and the signed cookie
// tokens that reference them.
type Manager struct {
	database *database.Database
	secret   []byte        // the secret key for signing session tokens
	expiry   time.Duration // how long sessions are valid
}

// NewManager creates and initializes a new session Manager.
func NewManager(database *database.Database, secret []byte, expiry time.Duration) *Manager {
	return &Manager{
		database: database,
		secret:   secret,
		expiry:   expiry,
	}
}

func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Create performs the following steps:
// 1. Creates a new Session row bound to the user.
// 2. Signs an HS256 token carrying the session ID.
// Returns the session and the token the client presents on later requests.
// Logging in again issues a fresh session; the new cookie replaces the old
// binding.
func (m *Manager) Create(userID int) (*Session, string, error) {
	session := NewSession(userID, m.expiry)
	if err := session.DBCreate(m.database.GetDB()); err != nil {
		return nil, "", fmt.Errorf("failed to store session: %w", err)
	}

	claims := sessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return session, signed, nil
}

// Lookup resolves a presented token to its live session. Expired sessions
// are deleted on sight.
func (m *Manager) Lookup(tokenString string) (*Session, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	session, err := DBGetSessionByID(m.database.GetDB(), claims.SessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired() {
		session.DBDelete(m.database.GetDB())
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Delete tears down a session, returning the client to the anonymous state.
func (m *Manager) Delete(session *Session) error {
	return session.DBDelete(m.database.GetDB())
}

// DeleteExpired removes sessions past their expiry. Run periodically.
func (m *Manager) DeleteExpired() error {
	return DBDeleteExpiredSessions(m.database.GetDB())
}
