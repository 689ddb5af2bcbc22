package types

import "github.com/shopspring/decimal"

// ScanResult is returned from a card scan. Balance and student fields are
// only set for registered cards. FromCache is true when the physical card
// could not be read and the offline mirror supplied the on-card view.
type ScanResult struct {
	CardUID    string           `json:"card_uid"`
	Registered bool             `json:"registered"`
	Balance    *decimal.Decimal `json:"balance,omitempty"`
	Status     CardStatus       `json:"status,omitempty"`
	Student    *Student         `json:"student,omitempty"`
	FromCache  bool             `json:"from_cache"`
}

// OrderItem is one requested purchase line, resolved against the menu.
type OrderItem struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

// Result is the outcome of a balance-mutating operation. The ledger change
// is committed whenever a Result is returned; CardWritten reports whether the
// physical card now agrees. A false CardWritten is a warning, not an error —
// the mutation sits in the pending log until sync confirms it. Transaction
// is nil when the operation moved no money (a registration with no initial
// balance).
type Result struct {
	Transaction       *Transaction `json:"transaction,omitempty"`
	CardWritten       bool         `json:"card_written"`
	LowBalanceWarning bool         `json:"low_balance_warning,omitempty"`
}
