package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
)

type AuditStore struct {
	conn *sql.DB
}

func NewAuditStore(conn *sql.DB) *AuditStore {
	return &AuditStore{conn: conn}
}

func (s *AuditStore) RecordAction(ctx context.Context, rec store.AuditRecord) error {
	at := rec.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO audit_log (actor, action, entity_type, entity_id, details, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, rec.Actor, rec.Action, rec.EntityType, rec.EntityID, rec.Details, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("record audit action: %w", err)
	}
	return nil
}
