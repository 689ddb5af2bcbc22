package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger mutation.
type TransactionType string

const (
	TxLoadFunds  TransactionType = "load_funds"
	TxPurchase   TransactionType = "purchase"
	TxRefund     TransactionType = "refund"
	TxAdjustment TransactionType = "adjustment"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TxLoadFunds, TxPurchase, TxRefund, TxAdjustment:
		return TransactionType(s), nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

func (t TransactionType) Valid() bool {
	_, err := ParseTransactionType(string(t))
	return err == nil
}

// Credits reports whether the type adds to the balance.
func (t TransactionType) Credits() bool {
	return t == TxLoadFunds || t == TxRefund || t == TxAdjustment
}

// Transaction is an immutable append-only ledger record. BalanceAfter is the
// ledger balance immediately after the mutation committed; nothing changes
// after creation.
type Transaction struct {
	ID            string            `json:"id"` // uuid
	CardID        int64             `json:"card_id"`
	CardUID       string            `json:"card_uid"`
	StudentID     int64             `json:"student_id,omitempty"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	Description   string            `json:"description,omitempty"`
	Actor         string            `json:"actor,omitempty"`
	RefID         string            `json:"ref_id,omitempty"` // original transaction id for refunds
	Items         []TransactionItem `json:"items,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TransactionItem is one purchased line within a purchase transaction.
type TransactionItem struct {
	MenuItemID int64           `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}
