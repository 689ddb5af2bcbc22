package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

type MenuStore struct {
	conn *sql.DB
}

func NewMenuStore(conn *sql.DB) *MenuStore {
	return &MenuStore{conn: conn}
}

func (s *MenuStore) Create(ctx context.Context, item types.MenuItem) (types.MenuItem, error) {
	now := time.Now()
	available := 0
	if item.IsAvailable {
		available = 1
	}
	res, err := s.conn.ExecContext(ctx, `
INSERT INTO menu_items (name, description, category, price, is_available, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, item.Name, item.Description, item.Category, item.Price.StringFixed(2), available, now.UnixMilli())
	if err != nil {
		return types.MenuItem{}, fmt.Errorf("create menu item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.MenuItem{}, fmt.Errorf("create menu item id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	return item, nil
}

func (s *MenuStore) Update(ctx context.Context, item types.MenuItem) error {
	available := 0
	if item.IsAvailable {
		available = 1
	}
	res, err := s.conn.ExecContext(ctx, `
UPDATE menu_items SET name = ?, description = ?, category = ?, price = ?, is_available = ?
WHERE id = ?;
`, item.Name, item.Description, item.Category, item.Price.StringFixed(2), available, item.ID)
	if err != nil {
		return fmt.Errorf("update menu item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update menu item: %w", err)
	}
	if n == 0 {
		return store.ErrMenuItemNotFound
	}
	return nil
}

func (s *MenuStore) GetByID(ctx context.Context, id int64) (types.MenuItem, error) {
	row := s.conn.QueryRowContext(ctx, `
SELECT id, name, description, category, price, is_available, created_at_ms
FROM menu_items WHERE id = ?;
`, id)

	item, err := scanMenuItem(row.Scan)
	if err == sql.ErrNoRows {
		return types.MenuItem{}, store.ErrMenuItemNotFound
	}
	if err != nil {
		return types.MenuItem{}, fmt.Errorf("get menu item: %w", err)
	}
	return item, nil
}

func (s *MenuStore) ListAvailable(ctx context.Context) ([]types.MenuItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT id, name, description, category, price, is_available, created_at_ms
FROM menu_items WHERE is_available = 1 ORDER BY category, name;
`)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var out []types.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanMenuItem(scan func(...any) error) (types.MenuItem, error) {
	var (
		item      types.MenuItem
		desc      sql.NullString
		category  sql.NullString
		price     string
		available int
		createdMs int64
	)
	err := scan(&item.ID, &item.Name, &desc, &category, &price, &available, &createdMs)
	if err != nil {
		return types.MenuItem{}, err
	}
	item.Description = desc.String
	item.Category = category.String
	if item.Price, err = money(price); err != nil {
		return types.MenuItem{}, err
	}
	item.IsAvailable = available == 1
	item.CreatedAt = msToTime(createdMs)
	return item, nil
}
