package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// SyncResult reports one sync run: how many pending operations landed in the
// ledger and the per-item errors for those that did not.
type SyncResult struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors,omitempty"`
}

// SyncEngine drains the pending-operation queue. Operations the ledger has
// never seen go through the same balance-update primitive as a live
// operation, so all status and funds checks apply; rows the ledger already
// committed (unconfirmed card writes) are only acknowledged. Failures are
// isolated per item: the row is annotated and stays pending for the next
// run.
type SyncEngine struct {
	ledger  store.LedgerStore
	offline store.OfflineStore
	log     *logrus.Logger
}

func NewSyncEngine(ledger store.LedgerStore, offline store.OfflineStore, log *logrus.Logger) *SyncEngine {
	if log == nil {
		log = logrus.New()
	}
	return &SyncEngine{ledger: ledger, offline: offline, log: log}
}

// Run performs one batch pass over the pending queue. Safe to invoke
// repeatedly: synced rows are skipped, so a second run with an empty queue
// does nothing. Context cancellation is honored between items.
func (e *SyncEngine) Run(ctx context.Context) (SyncResult, error) {
	pending, err := e.offline.ListPending(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list pending: %w", err)
	}

	var res SyncResult
	for _, op := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// A ledger-applied row marks a mutation the ledger committed while
		// the physical card write went unconfirmed. The money is already in
		// the ledger; applying it again would double it. The row is only
		// confirmed here, it never goes through ApplyChange.
		if op.LedgerApplied {
			if err := e.offline.MarkSynced(ctx, op.LocalID); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: mark synced: %v", op.LocalID, err))
				continue
			}
			e.log.WithFields(logrus.Fields{
				"local_id": op.LocalID,
				"card_uid": op.CardUID,
			}).Info("card write marker confirmed")
			res.Synced++
			continue
		}

		if err := e.applyOne(ctx, op); err != nil {
			msg := fmt.Sprintf("%s: %v", op.LocalID, err)
			res.Errors = append(res.Errors, msg)
			if merr := e.offline.MarkSyncError(ctx, op.LocalID, err.Error()); merr != nil {
				e.log.WithError(merr).WithField("local_id", op.LocalID).Error("mark sync error failed")
			}
			e.log.WithError(err).WithFields(logrus.Fields{
				"local_id": op.LocalID,
				"card_uid": op.CardUID,
			}).Warn("pending operation failed to sync")
			continue
		}

		if err := e.offline.MarkSynced(ctx, op.LocalID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: mark synced: %v", op.LocalID, err))
			continue
		}
		res.Synced++
	}

	if res.Synced > 0 || len(res.Errors) > 0 {
		e.log.WithFields(logrus.Fields{
			"synced": res.Synced,
			"errors": len(res.Errors),
		}).Info("sync run complete")
	}
	return res, nil
}

func (e *SyncEngine) applyOne(ctx context.Context, op store.PendingOperation) error {
	switch op.Type {
	case types.TxLoadFunds, types.TxRefund, types.TxAdjustment, types.TxPurchase:
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}

	_, err := e.ledger.ApplyChange(ctx, store.BalanceChange{
		CardUID:     op.CardUID,
		Type:        op.Type,
		Amount:      op.Amount,
		Description: fmt.Sprintf("synced offline %s from %s", op.Type, op.CreatedAt.UTC().Format("2006-01-02 15:04:05")),
		Actor:       "sync",
	})
	return err
}
