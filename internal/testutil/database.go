package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"dealerhub/internal/infrastructure/mysql"
)

const defaultTestDSN = "root:@tcp(localhost:3306)/dealerhub_test?parseTime=true&loc=UTC&multiStatements=true"

// SetupTestDB opens the MySQL test database and applies the schema.
// TEST_MYSQL_DSN overrides the default DSN; tests skip when it is unreachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	if err := mysql.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB empties every table, children first, and closes db.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}

	for i := len(mysql.Tables) - 1; i >= 0; i-- {
		table := mysql.Tables[i]
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// InsertInventory seeds one inventory unit. A nil dealerID places it in the
// central warehouse.
func InsertInventory(t *testing.T, db *sql.DB, id, vin string, dealerID *string, status string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO Inventory (id, vin, vehicleDetailId, dealerId, status, version, updatedAt)
		VALUES (?, ?, 'vd-1', ?, ?, 1, UTC_TIMESTAMP(3))
	`, id, vin, dealerID, status)
	if err != nil {
		t.Fatalf("failed to insert inventory %s: %v", id, err)
	}
}
