package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev loads a starter menu, one student, and a default admin operator so
// a dev terminal is usable immediately. Idempotent.
func SeedDev(ctx context.Context, conn *sql.DB, adminPasswordHash string) error {
	now := time.Now().UTC().UnixMilli()

	menu := []struct {
		name, category, price string
	}{
		{"Lunch Special", "lunch", "4.50"},
		{"Breakfast Sandwich", "breakfast", "3.25"},
		{"Fruit Cup", "snack", "1.50"},
		{"Milk", "drink", "0.75"},
	}
	for _, m := range menu {
		if _, err := conn.ExecContext(ctx, `
INSERT INTO menu_items(name, category, price, is_available, created_at_ms)
SELECT ?, ?, ?, 1, ?
WHERE NOT EXISTS (SELECT 1 FROM menu_items WHERE name = ?);
`, m.name, m.category, m.price, now, m.name); err != nil {
			return fmt.Errorf("seed menu item %s: %w", m.name, err)
		}
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO students(sid, first_name, last_name, grade, low_balance_threshold, created_at_ms)
VALUES ('S001', 'Dev', 'Student', '5', '10.00', ?);
`, now); err != nil {
		return fmt.Errorf("seed student: %w", err)
	}

	if adminPasswordHash != "" {
		if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO operators(username, password_hash, role, is_active, created_at_ms)
VALUES ('admin', ?, 'admin', 1, ?);
`, adminPasswordHash, now); err != nil {
			return fmt.Errorf("seed admin operator: %w", err)
		}
	}

	return nil
}
