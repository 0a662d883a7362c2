package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/db"
)

// SetupTestDB opens a fresh SQLite database in a temp dir with every
// migration applied. The database is closed when the test ends.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crows.db")
	database, err := db.Init(db.DriverSQLite, path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// a single connection serialises writers instead of surfacing SQLITE_BUSY
	database.SetMaxOpenConns(1)

	err = db.RunMigrations(database.DB, db.DriverSQLite)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func Ptr[T any](v T) *T {
	return &v
}
