package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidRole   = errors.New("invalid role")
)

// Role is the closed set of roles a user may hold. Any other value is
// rejected at the data layer.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           int    `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         Role   `db:"role"`
}

// -- DB Helpers --

func GetUserByUsername(db *sqlx.DB, username string) (*User, error) {
	var user User
	err := db.Get(&user, "SELECT id, username, password_hash, role FROM users WHERE username = $1", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	if !user.Role.Valid() {
		return nil, fmt.Errorf("user %d has role %q: %w", user.ID, user.Role, ErrInvalidRole)
	}
	return &user, nil
}

func GetUserByID(db *sqlx.DB, id int) (*User, error) {
	var user User
	err := db.Get(&user, "SELECT id, username, password_hash, role FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	if !user.Role.Valid() {
		return nil, fmt.Errorf("user %d has role %q: %w", user.ID, user.Role, ErrInvalidRole)
	}
	return &user, nil
}

// CreateUser inserts a new user. There is no pre-check on the username; the
// UNIQUE constraint is the arbiter of duplicates, and a constraint violation
// maps to ErrUsernameTaken.
func CreateUser(db *sqlx.DB, username string, passwordHash string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("role %q: %w", role, ErrInvalidRole)
	}
	res, err := db.Exec(`INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3)`,
		username, passwordHash, string(role))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get id for user %s: %w", username, err)
	}
	return &User{ID: int(id), Username: username, PasswordHash: passwordHash, Role: role}, nil
}

func UpdatePassword(db *sqlx.DB, id int, newHash string) error {
	res, err := db.Exec(`UPDATE users SET password_hash = $1 WHERE id = $2`, newHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password for user %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func DeleteUser(db *sqlx.DB, id int) error {
	res, err := db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
