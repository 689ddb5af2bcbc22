package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// LedgerStore holds cards and the transaction log in memory. It implements
// both store.LedgerStore and store.TransactionStore, which is convenient for
// service tests and dev environments. The mutex around ApplyChange provides
// the same check-then-mutate atomicity the SQLite worker does.
type LedgerStore struct {
	mu           sync.Mutex
	nextCardID   int64
	cards        map[string]*types.Card // keyed by card UID
	transactions []types.Transaction
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{cards: make(map[string]*types.Card)}
}

func (s *LedgerStore) CreateCard(_ context.Context, card types.Card) (types.Card, error) {
	card.CardUID = strings.TrimSpace(card.CardUID)
	if card.CardUID == "" {
		return types.Card{}, fmt.Errorf("card uid is required")
	}
	if card.Status == "" {
		card.Status = types.CardActive
	}
	if !card.Status.Valid() {
		return types.Card{}, fmt.Errorf("invalid card status %q", card.Status)
	}
	if card.IssuedAt.IsZero() {
		card.IssuedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cards[card.CardUID]; exists {
		return types.Card{}, store.ErrCardRegistered
	}
	s.nextCardID++
	card.ID = s.nextCardID
	stored := card
	s.cards[card.CardUID] = &stored
	return card, nil
}

func (s *LedgerStore) GetCardByUID(_ context.Context, uid string) (types.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[strings.TrimSpace(uid)]
	if !ok {
		return types.Card{}, store.ErrCardNotFound
	}
	return *card, nil
}

func (s *LedgerStore) SetCardStatus(_ context.Context, uid string, status types.CardStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid card status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[uid]
	if !ok {
		return store.ErrCardNotFound
	}
	if !card.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, card.Status, status)
	}
	card.Status = status
	return nil
}

func (s *LedgerStore) ApplyChange(_ context.Context, ch store.BalanceChange) (types.Transaction, error) {
	if !ch.Amount.IsPositive() {
		return types.Transaction{}, fmt.Errorf("ApplyChange: amount must be positive, got %s", ch.Amount)
	}
	if !ch.Type.Valid() {
		return types.Transaction{}, fmt.Errorf("ApplyChange: invalid type %q", ch.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[ch.CardUID]
	if !ok {
		return types.Transaction{}, store.ErrCardNotFound
	}
	if card.Status != types.CardActive {
		return types.Transaction{}, fmt.Errorf("%w: %s", store.ErrCardNotActive, card.Status)
	}

	before := card.Balance
	var after decimal.Decimal
	if ch.Type.Credits() {
		after = before.Add(ch.Amount)
	} else {
		if before.LessThan(ch.Amount) {
			return types.Transaction{}, &store.InsufficientBalanceError{Balance: before, Required: ch.Amount}
		}
		after = before.Sub(ch.Amount)
	}

	now := time.Now().UTC()
	card.Balance = after
	card.LastUsed = &now

	tx := types.Transaction{
		ID:            uuid.NewString(),
		CardID:        card.ID,
		CardUID:       ch.CardUID,
		StudentID:     card.StudentID,
		Type:          ch.Type,
		Amount:        ch.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   ch.Description,
		Actor:         ch.Actor,
		RefID:         ch.RefID,
		Items:         ch.Items,
		CreatedAt:     now,
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *LedgerStore) GetByID(_ context.Context, id string) (types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return types.Transaction{}, store.ErrTransactionNotFound
}

func (s *LedgerStore) ListByCard(_ context.Context, cardUID string, limit int) ([]types.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Transaction
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.transactions[i].CardUID == cardUID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

func (s *LedgerStore) ListByStudent(_ context.Context, studentID int64, from, to time.Time) ([]types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.StudentID != studentID {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *LedgerStore) DailySummary(_ context.Context, day time.Time) (store.DailySummary, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := store.DailySummary{
		Date:         start.Format("2006-01-02"),
		TotalSales:   decimal.Zero,
		TotalLoads:   decimal.Zero,
		TotalRefunds: decimal.Zero,
	}
	for _, tx := range s.transactions {
		if tx.CreatedAt.Before(start) || !tx.CreatedAt.Before(end) {
			continue
		}
		sum.Transactions++
		switch tx.Type {
		case types.TxPurchase:
			sum.TotalSales = sum.TotalSales.Add(tx.Amount)
		case types.TxLoadFunds:
			sum.TotalLoads = sum.TotalLoads.Add(tx.Amount)
		case types.TxRefund:
			sum.TotalRefunds = sum.TotalRefunds.Add(tx.Amount)
		}
	}
	sum.NetRevenue = sum.TotalSales.Sub(sum.TotalRefunds)
	return sum, nil
}

func (s *LedgerStore) PopularItems(_ context.Context, day time.Time, limit int) ([]store.PopularItem, error) {
	if limit <= 0 {
		limit = 10
	}
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	byName := map[string]*store.PopularItem{}
	for _, tx := range s.transactions {
		if tx.Type != types.TxPurchase || tx.CreatedAt.Before(start) || !tx.CreatedAt.Before(end) {
			continue
		}
		for _, item := range tx.Items {
			agg, ok := byName[item.Name]
			if !ok {
				agg = &store.PopularItem{Name: item.Name, Revenue: decimal.Zero}
				byName[item.Name] = agg
			}
			agg.Quantity += item.Quantity
			agg.Revenue = agg.Revenue.Add(item.TotalPrice)
		}
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

// Transactions returns a copy of the full log.  Test-only helper.
func (s *LedgerStore) Transactions() []types.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}
