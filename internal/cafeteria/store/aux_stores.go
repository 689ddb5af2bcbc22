package store

import (
	"context"
	"time"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

type StudentStore interface {
	Create(ctx context.Context, s types.Student) (types.Student, error)
	GetByID(ctx context.Context, id int64) (types.Student, error)
	GetBySID(ctx context.Context, sid string) (types.Student, error)
}

type MenuStore interface {
	Create(ctx context.Context, item types.MenuItem) (types.MenuItem, error)
	Update(ctx context.Context, item types.MenuItem) error
	GetByID(ctx context.Context, id int64) (types.MenuItem, error)
	ListAvailable(ctx context.Context) ([]types.MenuItem, error)
}

type OperatorStore interface {
	Create(ctx context.Context, op types.Operator) (types.Operator, error)
	GetByUsername(ctx context.Context, username string) (types.Operator, error)
}

// AuditRecord captures one operator action for the audit trail.
type AuditRecord struct {
	Actor      string
	Action     string // "register_card", "load_funds", ...
	EntityType string // "card", "transaction", ...
	EntityID   string
	Details    string
	CreatedAt  time.Time
}

// AuditStore persists operator actions as an append-only audit log.
type AuditStore interface {
	RecordAction(ctx context.Context, rec AuditRecord) error
}
