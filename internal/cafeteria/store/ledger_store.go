package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// BalanceChange describes one balance mutation to apply atomically.
// Credit/debit direction follows Type (see types.TransactionType.Credits).
type BalanceChange struct {
	CardUID     string
	Type        types.TransactionType
	Amount      decimal.Decimal // always positive
	Description string
	Actor       string
	Items       []types.TransactionItem // purchase line breakdown, optional
	RefID       string                  // original transaction id for refunds
}

// LedgerStore is the authoritative card-and-balance store. ApplyChange is
// the system's single balance-update primitive: it re-reads the balance,
// enforces card status and sufficient funds, writes the new balance, and
// inserts the matching transaction row in one transaction. Either everything
// commits or nothing does. Implementations must make the check-then-deduct
// sequence atomic with respect to concurrent changes on the same card.
type LedgerStore interface {
	CreateCard(ctx context.Context, card types.Card) (types.Card, error)
	GetCardByUID(ctx context.Context, uid string) (types.Card, error)
	SetCardStatus(ctx context.Context, uid string, status types.CardStatus) error
	ApplyChange(ctx context.Context, ch BalanceChange) (types.Transaction, error)
}
