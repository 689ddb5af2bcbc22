package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/creativerezz/cofk-lunch-card-app/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each call gets a unique in-memory database.  The shared-cache URI
	// keeps the database alive for the lifetime of the connection pool
	// (important because sql.DB may close/reopen the underlying conn).
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	// Match production: single connection for SQLite safety.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedStudent inserts a student row and returns its id.
func seedStudent(t *testing.T, conn *sql.DB, sid string) int64 {
	t.Helper()
	res, err := conn.ExecContext(context.Background(), `
INSERT INTO students (sid, first_name, last_name, grade, low_balance_threshold, created_at_ms)
VALUES (?, 'Alex', 'Rivera', '5', '10.00', ?);
`, sid, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("seedStudent(%s): %v", sid, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seedStudent id: %v", err)
	}
	return id
}

// seedCard inserts an active card for studentID with the given balance.
func seedCard(t *testing.T, conn *sql.DB, uid string, studentID int64, balance string) int64 {
	t.Helper()
	res, err := conn.ExecContext(context.Background(), `
INSERT INTO cards (card_uid, student_id, balance, status, issued_at_ms)
VALUES (?, ?, ?, 'active', ?);
`, uid, studentID, balance, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("seedCard(%s): %v", uid, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seedCard id: %v", err)
	}
	return id
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("mustDecimal(%s): %v", s, err)
	}
	return d
}

func equalMoney(a decimal.Decimal, s string) bool {
	return a.StringFixed(2) == s
}
