package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbpkg "github.com/creativerezz/cofk-lunch-card-app/internal/db"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// LedgerStore is the authoritative card store. All writes go through the
// single-writer Worker, which is what makes ApplyChange's check-then-mutate
// atomic on SQLite.
type LedgerStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
}

func NewLedgerStore(conn *sql.DB, writer *dbpkg.Worker) *LedgerStore {
	return &LedgerStore{conn: conn, writer: writer}
}

func (s *LedgerStore) CreateCard(ctx context.Context, card types.Card) (types.Card, error) {
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

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM cards WHERE card_uid = ?;`, card.CardUID).Scan(&existing)
		if err == nil {
			return store.ErrCardRegistered
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("CreateCard lookup: %w", err)
		}

		var expires any
		if card.ExpiresAt != nil {
			expires = card.ExpiresAt.UTC().UnixMilli()
		}
		var pin any
		if card.PINHash != "" {
			pin = card.PINHash
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO cards(card_uid, student_id, balance, status, pin_hash, issued_at_ms, expires_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, card.CardUID, card.StudentID, card.Balance.StringFixed(2), string(card.Status),
			pin, card.IssuedAt.UTC().UnixMilli(), expires)
		if err != nil {
			return fmt.Errorf("CreateCard insert: %w", err)
		}

		card.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateCard id: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Card{}, err
	}
	return card, nil
}

func (s *LedgerStore) GetCardByUID(ctx context.Context, uid string) (types.Card, error) {
	var (
		card      types.Card
		balance   string
		status    string
		pinHash   sql.NullString
		issuedMs  int64
		expiresMs sql.NullInt64
		lastUsed  sql.NullInt64
	)
	err := s.conn.QueryRowContext(ctx, `
SELECT id, card_uid, student_id, balance, status, pin_hash, issued_at_ms, expires_at_ms, last_used_ms
FROM cards WHERE card_uid = ?;
`, strings.TrimSpace(uid)).Scan(
		&card.ID, &card.CardUID, &card.StudentID, &balance, &status,
		&pinHash, &issuedMs, &expiresMs, &lastUsed,
	)
	if err == sql.ErrNoRows {
		return types.Card{}, store.ErrCardNotFound
	}
	if err != nil {
		return types.Card{}, fmt.Errorf("GetCardByUID: %w", err)
	}

	card.Balance, err = money(balance)
	if err != nil {
		return types.Card{}, err
	}
	card.Status, err = types.ParseCardStatus(status)
	if err != nil {
		return types.Card{}, fmt.Errorf("GetCardByUID: %w", err)
	}
	card.PINHash = pinHash.String
	card.IssuedAt = msToTime(issuedMs)
	card.ExpiresAt = optionalTime(expiresMs)
	card.LastUsed = optionalTime(lastUsed)
	return card, nil
}

func (s *LedgerStore) SetCardStatus(ctx context.Context, uid string, status types.CardStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid card status %q", status)
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM cards WHERE card_uid = ?;`, uid).Scan(&current)
		if err == sql.ErrNoRows {
			return store.ErrCardNotFound
		}
		if err != nil {
			return fmt.Errorf("SetCardStatus read: %w", err)
		}

		cur, err := types.ParseCardStatus(current)
		if err != nil {
			return err
		}
		if !cur.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, cur, status)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET status = ? WHERE card_uid = ?;`, string(status), uid); err != nil {
			return fmt.Errorf("SetCardStatus update: %w", err)
		}
		return nil
	})
}

// ApplyChange is the single balance-update primitive. The balance re-read,
// status check, sufficient-funds check, balance write, and transaction
// insert happen in one write transaction; any failure rolls everything back.
func (s *LedgerStore) ApplyChange(ctx context.Context, ch store.BalanceChange) (types.Transaction, error) {
	if !ch.Amount.IsPositive() {
		return types.Transaction{}, fmt.Errorf("ApplyChange: amount must be positive, got %s", ch.Amount)
	}
	if !ch.Type.Valid() {
		return types.Transaction{}, fmt.Errorf("ApplyChange: invalid type %q", ch.Type)
	}

	var out types.Transaction
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var (
			cardID     int64
			studentID  int64
			balanceStr string
			status     string
		)
		err := tx.QueryRowContext(ctx, `
SELECT id, student_id, balance, status FROM cards WHERE card_uid = ?;
`, ch.CardUID).Scan(&cardID, &studentID, &balanceStr, &status)
		if err == sql.ErrNoRows {
			return store.ErrCardNotFound
		}
		if err != nil {
			return fmt.Errorf("ApplyChange read card: %w", err)
		}

		cur, err := types.ParseCardStatus(status)
		if err != nil {
			return err
		}
		if cur != types.CardActive {
			return fmt.Errorf("%w: %s", store.ErrCardNotActive, cur)
		}

		before, err := money(balanceStr)
		if err != nil {
			return err
		}

		var after decimal.Decimal
		if ch.Type.Credits() {
			after = before.Add(ch.Amount)
		} else {
			if before.LessThan(ch.Amount) {
				return &store.InsufficientBalanceError{Balance: before, Required: ch.Amount}
			}
			after = before.Sub(ch.Amount)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
UPDATE cards SET balance = ?, last_used_ms = ? WHERE id = ?;
`, after.StringFixed(2), now.UnixMilli(), cardID); err != nil {
			return fmt.Errorf("ApplyChange update balance: %w", err)
		}

		txID := uuid.NewString()
		var refID any
		if ch.RefID != "" {
			refID = ch.RefID
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO transactions(
  id, card_id, card_uid, student_id, type, amount,
  balance_before, balance_after, description, actor, ref_id, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, txID, cardID, ch.CardUID, studentID, string(ch.Type), ch.Amount.StringFixed(2),
			before.StringFixed(2), after.StringFixed(2), ch.Description, ch.Actor,
			refID, now.UnixMilli()); err != nil {
			return fmt.Errorf("ApplyChange insert transaction: %w", err)
		}

		for _, item := range ch.Items {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO transaction_items(transaction_id, menu_item_id, name, quantity, unit_price, total_price)
VALUES (?, ?, ?, ?, ?, ?);
`, txID, item.MenuItemID, item.Name, item.Quantity,
				item.UnitPrice.StringFixed(2), item.TotalPrice.StringFixed(2)); err != nil {
				return fmt.Errorf("ApplyChange insert item: %w", err)
			}
		}

		out = types.Transaction{
			ID:            txID,
			CardID:        cardID,
			CardUID:       ch.CardUID,
			StudentID:     studentID,
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
		return nil
	})
	if err != nil {
		return types.Transaction{}, err
	}
	return out, nil
}
