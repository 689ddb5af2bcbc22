package store

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCardNotFound        = errors.New("card not found")
	ErrCardRegistered      = errors.New("card already registered")
	ErrCardNotActive       = errors.New("card is not active")
	ErrInvalidTransition   = errors.New("invalid card status transition")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrOperatorNotFound    = errors.New("operator not found")
)

// InsufficientBalanceError rejects a debit that would overdraw the card.
// Balance is the card's balance at decision time and Required the debit
// total; the ledger is left untouched.
type InsufficientBalanceError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s",
		e.Balance.StringFixed(2), e.Required.StringFixed(2))
}
