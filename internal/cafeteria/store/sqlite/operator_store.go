package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

type OperatorStore struct {
	conn *sql.DB
}

func NewOperatorStore(conn *sql.DB) *OperatorStore {
	return &OperatorStore{conn: conn}
}

func (s *OperatorStore) Create(ctx context.Context, op types.Operator) (types.Operator, error) {
	now := time.Now()
	active := 0
	if op.IsActive {
		active = 1
	}
	res, err := s.conn.ExecContext(ctx, `
INSERT INTO operators (username, password_hash, role, is_active, created_at_ms)
VALUES (?, ?, ?, ?, ?);
`, op.Username, op.PasswordHash, op.Role, active, now.UnixMilli())
	if err != nil {
		return types.Operator{}, fmt.Errorf("create operator: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Operator{}, fmt.Errorf("create operator id: %w", err)
	}
	op.ID = id
	op.CreatedAt = now
	return op, nil
}

func (s *OperatorStore) GetByUsername(ctx context.Context, username string) (types.Operator, error) {
	var (
		op        types.Operator
		active    int
		createdMs int64
	)
	err := s.conn.QueryRowContext(ctx, `
SELECT id, username, password_hash, role, is_active, created_at_ms
FROM operators WHERE username = ?;
`, username).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role, &active, &createdMs)
	if err == sql.ErrNoRows {
		return types.Operator{}, store.ErrOperatorNotFound
	}
	if err != nil {
		return types.Operator{}, fmt.Errorf("get operator: %w", err)
	}
	op.IsActive = active == 1
	op.CreatedAt = msToTime(createdMs)
	return op, nil
}
