package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// CardStatus is the lifecycle state of a physical card. Transitions are
// one-way (a lost or expired card never comes back) except that an active
// card may be suspended and later reactivated.
type CardStatus string

const (
	CardActive    CardStatus = "active"
	CardSuspended CardStatus = "suspended"
	CardLost      CardStatus = "lost"
	CardExpired   CardStatus = "expired"
)

// ParseCardStatus validates a status string coming from persistence or an
// API boundary. Unrecognized values never reach business logic.
func ParseCardStatus(s string) (CardStatus, error) {
	switch CardStatus(s) {
	case CardActive, CardSuspended, CardLost, CardExpired:
		return CardStatus(s), nil
	}
	return "", fmt.Errorf("unknown card status %q", s)
}

func (s CardStatus) Valid() bool {
	_, err := ParseCardStatus(string(s))
	return err == nil
}

// CanTransitionTo reports whether a status change is allowed.
func (s CardStatus) CanTransitionTo(next CardStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case CardActive:
		return next == CardSuspended || next == CardLost || next == CardExpired
	case CardSuspended:
		return next == CardActive || next == CardLost || next == CardExpired
	default:
		// lost and expired are terminal
		return false
	}
}

// Card is a registered physical card. Balance is authoritative here, not on
// the physical medium; it is mutated only through the ledger store's
// ApplyChange primitive and never goes negative.
type Card struct {
	ID        int64           `json:"id"`
	CardUID   string          `json:"card_uid"`
	StudentID int64           `json:"student_id"`
	Balance   decimal.Decimal `json:"balance"`
	Status    CardStatus      `json:"status"`
	PINHash   string          `json:"-"`
	IssuedAt  time.Time       `json:"issued_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	LastUsed  *time.Time      `json:"last_used,omitempty"`
}

// SetPIN stores a bcrypt hash of the PIN. An empty pin clears it.
func (c *Card) SetPIN(pin string) error {
	if pin == "" {
		c.PINHash = ""
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	c.PINHash = string(h)
	return nil
}

// VerifyPIN reports whether pin matches. Cards without a PIN accept anything.
func (c *Card) VerifyPIN(pin string) bool {
	if c.PINHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PINHash), []byte(pin)) == nil
}

// Student owns zero or more cards. LowBalanceThreshold drives the
// low-balance warning returned from purchases.
type Student struct {
	ID                  int64           `json:"id"`
	SID                 string          `json:"sid"` // external student identifier, e.g. "S001"
	FirstName           string          `json:"first_name"`
	LastName            string          `json:"last_name"`
	Grade               string          `json:"grade,omitempty"`
	ParentEmail         string          `json:"parent_email,omitempty"`
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
