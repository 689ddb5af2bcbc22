package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
)

// CardMedium is the physical-card surface the processor needs: the session's
// bounded card wait plus raw block I/O for the codec layer.
type CardMedium interface {
	ConnectReader() error
	WaitForCard(ctx context.Context, timeout time.Duration) (string, error)
	CardUID() (string, error)
	reader.BlockIO
	Disconnect()
}

// Dependencies wires the processor. Card may be nil for a terminal with no
// reader attached; every mutation then lands in the pending log.
type Dependencies struct {
	Ledger       store.LedgerStore
	Transactions store.TransactionStore
	Menu         store.MenuStore
	Students     store.StudentStore
	Offline      store.OfflineStore
	Audit        store.AuditStore
	Card         CardMedium
	Log          *logrus.Logger
}

// Processor owns every balance-mutating operation. The ledger is the source
// of truth: each mutation commits there first, then makes a best-effort
// physical card write. A failed card write is reported, never fatal.
type Processor struct {
	ledger       store.LedgerStore
	transactions store.TransactionStore
	menu         store.MenuStore
	students     store.StudentStore
	offline      store.OfflineStore
	audit        store.AuditStore
	card         CardMedium
	log          *logrus.Logger
}

func NewProcessor(deps Dependencies) *Processor {
	log := deps.Log
	if log == nil {
		log = logrus.New()
	}
	return &Processor{
		ledger:       deps.Ledger,
		transactions: deps.Transactions,
		menu:         deps.Menu,
		students:     deps.Students,
		offline:      deps.Offline,
		audit:        deps.Audit,
		card:         deps.Card,
		log:          log,
	}
}

// RegisterCard binds a card UID to a student and opens its ledger account.
// A positive initial balance is recorded as a load-funds transaction so the
// money trail starts at the first row.
func (p *Processor) RegisterCard(ctx context.Context, uid, studentSID string, initialBalance decimal.Decimal, pin, actor string) (types.Result, error) {
	uid = strings.TrimSpace(uid)
	if initialBalance.IsNegative() {
		return types.Result{}, ErrInvalidAmount
	}

	student, err := p.students.GetBySID(ctx, studentSID)
	if err != nil {
		return types.Result{}, err
	}

	card := types.Card{
		CardUID:   uid,
		StudentID: student.ID,
		Balance:   decimal.Zero,
		Status:    types.CardActive,
	}
	if pin != "" {
		if err := card.SetPIN(pin); err != nil {
			return types.Result{}, fmt.Errorf("hash pin: %w", err)
		}
	}
	if _, err := p.ledger.CreateCard(ctx, card); err != nil {
		return types.Result{}, err
	}

	res := types.Result{CardWritten: true}
	balance := decimal.Zero
	if initialBalance.IsPositive() {
		tx, err := p.ledger.ApplyChange(ctx, store.BalanceChange{
			CardUID:     uid,
			Type:        types.TxLoadFunds,
			Amount:      initialBalance,
			Description: "initial balance",
			Actor:       actor,
		})
		if err != nil {
			return types.Result{}, err
		}
		res.Transaction = &tx
		balance = tx.BalanceAfter
	}

	res.CardWritten = p.writePhysical(ctx, uid, balance, student.SID, types.TxLoadFunds, initialBalance)
	p.recordAudit(ctx, actor, "register_card", "card", uid,
		fmt.Sprintf("student=%s initial=%s", student.SID, initialBalance.StringFixed(2)))
	p.log.WithFields(logrus.Fields{
		"card_uid": uid,
		"student":  student.SID,
		"balance":  balance.StringFixed(2),
	}).Info("card registered")
	return res, nil
}

// LoadFunds credits the card.
func (p *Processor) LoadFunds(ctx context.Context, uid string, amount decimal.Decimal, description, actor string) (types.Result, error) {
	if !amount.IsPositive() {
		return types.Result{}, ErrInvalidAmount
	}
	if description == "" {
		description = "funds loaded"
	}

	tx, err := p.ledger.ApplyChange(ctx, store.BalanceChange{
		CardUID:     uid,
		Type:        types.TxLoadFunds,
		Amount:      amount,
		Description: description,
		Actor:       actor,
	})
	if err != nil {
		return types.Result{}, err
	}

	written := p.writePhysical(ctx, uid, tx.BalanceAfter, p.identityFor(ctx, tx.StudentID), types.TxLoadFunds, amount)
	p.recordAudit(ctx, actor, "load_funds", "transaction", tx.ID, "amount="+amount.StringFixed(2))
	p.log.WithFields(logrus.Fields{
		"card_uid":       uid,
		"transaction_id": tx.ID,
		"amount":         amount.StringFixed(2),
		"balance":        tx.BalanceAfter.StringFixed(2),
		"card_written":   written,
	}).Info("funds loaded")
	return types.Result{Transaction: &tx, CardWritten: written}, nil
}

// Purchase resolves the order against the menu, debits the card, and records
// the line items. Unknown menu ids and non-positive quantities are skipped;
// an order with no surviving lines is rejected.
func (p *Processor) Purchase(ctx context.Context, uid string, order []types.OrderItem, actor string) (types.Result, error) {
	var (
		total decimal.Decimal
		lines []types.TransactionItem
	)
	for _, ord := range order {
		if ord.Quantity <= 0 {
			continue
		}
		item, err := p.menu.GetByID(ctx, ord.MenuItemID)
		if err != nil {
			if err == store.ErrMenuItemNotFound {
				continue
			}
			return types.Result{}, err
		}
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(ord.Quantity)))
		lines = append(lines, types.TransactionItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   ord.Quantity,
			UnitPrice:  item.Price,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	if len(lines) == 0 {
		return types.Result{}, ErrEmptyOrder
	}

	tx, err := p.ledger.ApplyChange(ctx, store.BalanceChange{
		CardUID:     uid,
		Type:        types.TxPurchase,
		Amount:      total,
		Description: describeOrder(lines),
		Actor:       actor,
		Items:       lines,
	})
	if err != nil {
		return types.Result{}, err
	}

	res := types.Result{Transaction: &tx}
	res.CardWritten = p.writePhysical(ctx, uid, tx.BalanceAfter, p.identityFor(ctx, tx.StudentID), types.TxPurchase, total)

	if student, err := p.students.GetByID(ctx, tx.StudentID); err == nil {
		if tx.BalanceAfter.LessThan(student.LowBalanceThreshold) {
			res.LowBalanceWarning = true
		}
	}

	p.recordAudit(ctx, actor, "purchase", "transaction", tx.ID, "amount="+total.StringFixed(2))
	p.log.WithFields(logrus.Fields{
		"card_uid":       uid,
		"transaction_id": tx.ID,
		"amount":         total.StringFixed(2),
		"balance":        tx.BalanceAfter.StringFixed(2),
		"items":          len(lines),
		"card_written":   res.CardWritten,
	}).Info("purchase")
	return res, nil
}

// Refund credits back the full amount of a prior transaction. The new
// transaction references the original id; refunds of refunds are rejected.
func (p *Processor) Refund(ctx context.Context, transactionID, actor string) (types.Result, error) {
	orig, err := p.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return types.Result{}, err
	}
	if orig.Type == types.TxRefund {
		return types.Result{}, ErrAlreadyRefund
	}

	tx, err := p.ledger.ApplyChange(ctx, store.BalanceChange{
		CardUID:     orig.CardUID,
		Type:        types.TxRefund,
		Amount:      orig.Amount,
		Description: "refund of " + orig.ID,
		Actor:       actor,
		RefID:       orig.ID,
	})
	if err != nil {
		return types.Result{}, err
	}

	written := p.writePhysical(ctx, orig.CardUID, tx.BalanceAfter, p.identityFor(ctx, tx.StudentID), types.TxRefund, orig.Amount)
	p.recordAudit(ctx, actor, "refund", "transaction", tx.ID, "original="+orig.ID)
	p.log.WithFields(logrus.Fields{
		"card_uid":       orig.CardUID,
		"transaction_id": tx.ID,
		"original_id":    orig.ID,
		"amount":         orig.Amount.StringFixed(2),
		"card_written":   written,
	}).Info("refund")
	return types.Result{Transaction: &tx, CardWritten: written}, nil
}

// SetCardStatus applies a validated status transition.
func (p *Processor) SetCardStatus(ctx context.Context, uid string, status types.CardStatus, actor string) error {
	if err := p.ledger.SetCardStatus(ctx, uid, status); err != nil {
		return err
	}
	p.recordAudit(ctx, actor, "set_card_status", "card", uid, "status="+string(status))
	p.log.WithFields(logrus.Fields{"card_uid": uid, "status": status}).Info("card status changed")
	return nil
}

// writePhysical pushes the post-mutation balance onto the card. Any failure
// (no reader, no card present, wrong card in the field, transport or status
// error) enqueues a ledger-applied pending marker and refreshes the cache
// optimistically; the ledger has already committed, so this only reports
// whether the card agrees yet. The marker is never replayed into the ledger.
func (p *Processor) writePhysical(ctx context.Context, uid string, balance decimal.Decimal, identity string, op types.TransactionType, amount decimal.Decimal) bool {
	var writeErr error
	if p.card == nil {
		writeErr = ErrNoReader
	} else if writeErr = p.verifyPresented(uid); writeErr == nil {
		writeErr = reader.WriteCard(p.card, balance, identity)
	}

	if writeErr == nil {
		if err := p.offline.CacheWrite(ctx, uid, balance, identity); err != nil {
			p.log.WithError(err).WithField("card_uid", uid).Warn("cache refresh failed")
		}
		return true
	}

	p.log.WithError(writeErr).WithField("card_uid", uid).Warn("card write failed, queued for sync")
	if amount.IsPositive() {
		if _, err := p.offline.EnqueuePending(ctx, uid, op, amount, true); err != nil {
			p.log.WithError(err).WithField("card_uid", uid).Error("enqueue pending failed")
		}
	}
	if err := p.offline.CacheWrite(ctx, uid, balance, identity); err != nil {
		p.log.WithError(err).WithField("card_uid", uid).Warn("cache refresh failed")
	}
	return false
}

// verifyPresented confirms the card in the field is the intended write
// target. Writing without this check would stamp uid's balance onto
// whichever card happens to sit on the reader.
func (p *Processor) verifyPresented(uid string) error {
	got, err := p.card.CardUID()
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, uid) {
		return fmt.Errorf("%w: presented %s, want %s", ErrWrongCard, got, uid)
	}
	return nil
}

// identityFor resolves the on-card identity string for a student. Falls back
// to empty when the student row is missing; the codec tolerates it.
func (p *Processor) identityFor(ctx context.Context, studentID int64) string {
	student, err := p.students.GetByID(ctx, studentID)
	if err != nil {
		return ""
	}
	return student.SID
}

func (p *Processor) recordAudit(ctx context.Context, actor, action, entityType, entityID, details string) {
	if p.audit == nil {
		return
	}
	// A failed audit write never blocks the operation itself.
	err := p.audit.RecordAction(ctx, store.AuditRecord{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
	if err != nil {
		p.log.WithError(err).WithField("action", action).Warn("audit write failed")
	}
}

func describeOrder(lines []types.TransactionItem) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity > 1 {
			parts = append(parts, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
		} else {
			parts = append(parts, l.Name)
		}
	}
	return strings.Join(parts, ", ")
}
