package testutil

import (
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"userAuthService/database"
)

// OpenTestDB opens an in-memory SQLite database and applies the schema.
// We use a shared cache memory database so that multiple connections share
// the same DB for the duration of the test. Caller cleanup is registered
// automatically.
func OpenTestDB(t *testing.T, name string) *database.Database {
	t.Helper()
	db, err := database.Connect("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
