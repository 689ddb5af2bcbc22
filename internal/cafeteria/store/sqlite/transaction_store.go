package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// TransactionStore reads the append-only transaction log and derives the
// reporting aggregates. Monetary aggregation happens in Go over decimal
// values — the TEXT money columns are never summed in SQL.
type TransactionStore struct {
	conn *sql.DB
}

func NewTransactionStore(conn *sql.DB) *TransactionStore {
	return &TransactionStore{conn: conn}
}

const txColumns = `
id, card_id, card_uid, student_id, type, amount,
balance_before, balance_after, description, actor, ref_id, created_at_ms`

type txScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row txScanner) (types.Transaction, error) {
	var (
		t         types.Transaction
		studentID sql.NullInt64
		typeStr   string
		amount    string
		before    string
		after     string
		desc      sql.NullString
		actor     sql.NullString
		refID     sql.NullString
		createdMs int64
	)
	err := row.Scan(&t.ID, &t.CardID, &t.CardUID, &studentID, &typeStr, &amount,
		&before, &after, &desc, &actor, &refID, &createdMs)
	if err != nil {
		return types.Transaction{}, err
	}

	t.StudentID = studentID.Int64
	t.Type, err = types.ParseTransactionType(typeStr)
	if err != nil {
		return types.Transaction{}, err
	}
	if t.Amount, err = money(amount); err != nil {
		return types.Transaction{}, err
	}
	if t.BalanceBefore, err = money(before); err != nil {
		return types.Transaction{}, err
	}
	if t.BalanceAfter, err = money(after); err != nil {
		return types.Transaction{}, err
	}
	t.Description = desc.String
	t.Actor = actor.String
	t.RefID = refID.String
	t.CreatedAt = msToTime(createdMs)
	return t, nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (types.Transaction, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ?;`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return types.Transaction{}, store.ErrTransactionNotFound
	}
	if err != nil {
		return types.Transaction{}, fmt.Errorf("GetByID: %w", err)
	}

	t.Items, err = s.itemsFor(ctx, t.ID)
	if err != nil {
		return types.Transaction{}, err
	}
	return t, nil
}

func (s *TransactionStore) itemsFor(ctx context.Context, txID string) ([]types.TransactionItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT menu_item_id, name, quantity, unit_price, total_price
FROM transaction_items WHERE transaction_id = ? ORDER BY id;
`, txID)
	if err != nil {
		return nil, fmt.Errorf("itemsFor: %w", err)
	}
	defer rows.Close()

	var items []types.TransactionItem
	for rows.Next() {
		var (
			item  types.TransactionItem
			unit  string
			total string
		)
		if err := rows.Scan(&item.MenuItemID, &item.Name, &item.Quantity, &unit, &total); err != nil {
			return nil, fmt.Errorf("itemsFor scan: %w", err)
		}
		if item.UnitPrice, err = money(unit); err != nil {
			return nil, err
		}
		if item.TotalPrice, err = money(total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *TransactionStore) ListByCard(ctx context.Context, cardUID string, limit int) ([]types.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE card_uid = ? ORDER BY created_at_ms DESC LIMIT ?;`,
		cardUID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByCard: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *TransactionStore) ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]types.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
WHERE student_id = ? AND created_at_ms >= ? AND created_at_ms < ?
ORDER BY created_at_ms DESC;`,
		studentID, from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ListByStudent: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]types.Transaction, error) {
	var out []types.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DailySummary aggregates the calendar day (UTC) containing day.
func (s *TransactionStore) DailySummary(ctx context.Context, day time.Time) (store.DailySummary, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	rows, err := s.conn.QueryContext(ctx, `
SELECT type, amount FROM transactions WHERE created_at_ms >= ? AND created_at_ms < ?;
`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return store.DailySummary{}, fmt.Errorf("DailySummary: %w", err)
	}
	defer rows.Close()

	sum := store.DailySummary{
		Date:         start.Format("2006-01-02"),
		TotalSales:   decimal.Zero,
		TotalLoads:   decimal.Zero,
		TotalRefunds: decimal.Zero,
	}
	for rows.Next() {
		var typeStr, amountStr string
		if err := rows.Scan(&typeStr, &amountStr); err != nil {
			return store.DailySummary{}, fmt.Errorf("DailySummary scan: %w", err)
		}
		amount, err := money(amountStr)
		if err != nil {
			return store.DailySummary{}, err
		}
		sum.Transactions++
		switch types.TransactionType(typeStr) {
		case types.TxPurchase:
			sum.TotalSales = sum.TotalSales.Add(amount)
		case types.TxLoadFunds:
			sum.TotalLoads = sum.TotalLoads.Add(amount)
		case types.TxRefund:
			sum.TotalRefunds = sum.TotalRefunds.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return store.DailySummary{}, err
	}
	sum.NetRevenue = sum.TotalSales.Sub(sum.TotalRefunds)
	return sum, nil
}

// PopularItems ranks purchased items for the calendar day by quantity.
func (s *TransactionStore) PopularItems(ctx context.Context, day time.Time, limit int) ([]store.PopularItem, error) {
	if limit <= 0 {
		limit = 10
	}
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	rows, err := s.conn.QueryContext(ctx, `
SELECT ti.name, ti.quantity, ti.total_price
FROM transaction_items ti
JOIN transactions t ON t.id = ti.transaction_id
WHERE t.type = 'purchase' AND t.created_at_ms >= ? AND t.created_at_ms < ?;
`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("PopularItems: %w", err)
	}
	defer rows.Close()

	byName := map[string]*store.PopularItem{}
	for rows.Next() {
		var (
			name     string
			quantity int
			totalStr string
		)
		if err := rows.Scan(&name, &quantity, &totalStr); err != nil {
			return nil, fmt.Errorf("PopularItems scan: %w", err)
		}
		total, err := money(totalStr)
		if err != nil {
			return nil, err
		}
		item, ok := byName[name]
		if !ok {
			item = &store.PopularItem{Name: name, Revenue: decimal.Zero}
			byName[name] = item
		}
		item.Quantity += quantity
		item.Revenue = item.Revenue.Add(total)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]store.PopularItem, 0, len(byName))
	for _, item := range byName {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
