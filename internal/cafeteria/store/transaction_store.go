package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// DailySummary aggregates one calendar day of ledger activity.
type DailySummary struct {
	Date         string          `json:"date"`
	Transactions int             `json:"transactions"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	TotalLoads   decimal.Decimal `json:"total_loads"`
	TotalRefunds decimal.Decimal `json:"total_refunds"`
	NetRevenue   decimal.Decimal `json:"net_revenue"`
}

// PopularItem is one row of the most-purchased-items report.
type PopularItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// TransactionStore reads the append-only transaction log.
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (types.Transaction, error)
	ListByCard(ctx context.Context, cardUID string, limit int) ([]types.Transaction, error)
	ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]types.Transaction, error)
	DailySummary(ctx context.Context, day time.Time) (DailySummary, error)
	PopularItems(ctx context.Context, day time.Time, limit int) ([]PopularItem, error)
}
