// internal/db/testdb.go
package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
)

// SetupTestDB connects to the Postgres instance described by the PG*
// environment variables and applies the schema. Tests that need a database
// are skipped when no instance is reachable.
func SetupTestDB(t testing.TB) *sqlx.DB {
	t.Helper()

	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "libracirc")
	password := envOr("PGPASSWORD", "libracirc")
	name := envOr("PGDATABASE", "libracirc_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name)

	database, err := Open(dsn)
	if err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	if err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	truncate := func() {
		_, _ = database.Exec(`TRUNCATE TABLE borrow_requests, borrow_history, borrow_records, books, credentials, members CASCADE`)
	}
	truncate()

	t.Cleanup(func() {
		truncate()
		database.Close()
	})

	return database
}

func envOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
