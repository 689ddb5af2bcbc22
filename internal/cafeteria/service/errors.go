package service

import "errors"

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyOrder    = errors.New("order has no valid lines")
	ErrAlreadyRefund = errors.New("refund transactions cannot be refunded")
	ErrNoReader      = errors.New("no card reader available")
	ErrWrongCard     = errors.New("presented card does not match the target card")
)
