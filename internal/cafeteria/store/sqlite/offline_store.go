package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cardcodec"
)

// OfflineStore is the terminal-local mirror database. It lives in a separate
// SQLite file from the ledger so a terminal keeps working with the ledger
// file unavailable. The schema is ensured at construction rather than
// migrated; it has exactly one consumer and no history to preserve.
type OfflineStore struct {
	conn *sql.DB
}

const offlineSchema = `
CREATE TABLE IF NOT EXISTS card_cache (
  card_uid     TEXT PRIMARY KEY,
  balance      TEXT NOT NULL,
  identity     TEXT NOT NULL,
  checksum     TEXT NOT NULL,
  last_sync_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_operations (
  local_id       TEXT PRIMARY KEY,
  card_uid       TEXT NOT NULL,
  type           TEXT NOT NULL,
  amount         TEXT NOT NULL,
  ledger_applied INTEGER NOT NULL DEFAULT 0,
  created_at_ms  INTEGER NOT NULL,
  synced         INTEGER NOT NULL DEFAULT 0,
  synced_at_ms   INTEGER,
  sync_error     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_pending_unsynced
  ON pending_operations(synced, created_at_ms);
`

// OpenOffline opens (creating if needed) the terminal-local database at path
// and ensures its schema.
func OpenOffline(path string) (*OfflineStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open offline db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping offline db: %w", err)
	}
	if _, err := conn.Exec(offlineSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure offline schema: %w", err)
	}
	return &OfflineStore{conn: conn}, nil
}

// NewOfflineStore wraps an existing connection, ensuring the schema. Used by
// tests with in-memory databases.
func NewOfflineStore(conn *sql.DB) (*OfflineStore, error) {
	if _, err := conn.Exec(offlineSchema); err != nil {
		return nil, fmt.Errorf("ensure offline schema: %w", err)
	}
	return &OfflineStore{conn: conn}, nil
}

func (s *OfflineStore) Close() error { return s.conn.Close() }

func (s *OfflineStore) CacheRead(ctx context.Context, uid string) (store.CacheEntry, bool, error) {
	var (
		e      store.CacheEntry
		bal    string
		syncMs int64
	)
	err := s.conn.QueryRowContext(ctx, `
SELECT card_uid, balance, identity, checksum, last_sync_ms
FROM card_cache WHERE card_uid = ?;
`, uid).Scan(&e.CardUID, &bal, &e.Identity, &e.Checksum, &syncMs)
	if err == sql.ErrNoRows {
		return store.CacheEntry{}, false, nil
	}
	if err != nil {
		return store.CacheEntry{}, false, fmt.Errorf("CacheRead: %w", err)
	}
	if e.Balance, err = money(bal); err != nil {
		return store.CacheEntry{}, false, err
	}
	e.LastSync = msToTime(syncMs)
	return e, true, nil
}

func (s *OfflineStore) CacheWrite(ctx context.Context, uid string, balance decimal.Decimal, identity string) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO card_cache (card_uid, balance, identity, checksum, last_sync_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(card_uid) DO UPDATE SET
  balance = excluded.balance,
  identity = excluded.identity,
  checksum = excluded.checksum,
  last_sync_ms = excluded.last_sync_ms;
`, uid, balance.StringFixed(2), identity, cardcodec.Checksum(balance, identity), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("CacheWrite: %w", err)
	}
	return nil
}

func (s *OfflineStore) EnqueuePending(ctx context.Context, uid string, op types.TransactionType, amount decimal.Decimal, ledgerApplied bool) (string, error) {
	localID := uuid.NewString()
	applied := 0
	if ledgerApplied {
		applied = 1
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO pending_operations (local_id, card_uid, type, amount, ledger_applied, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, localID, uid, string(op), amount.StringFixed(2), applied, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("EnqueuePending: %w", err)
	}
	return localID, nil
}

func (s *OfflineStore) ListPending(ctx context.Context) ([]store.PendingOperation, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT local_id, card_uid, type, amount, ledger_applied, created_at_ms, synced, synced_at_ms, sync_error
FROM pending_operations WHERE synced = 0 ORDER BY created_at_ms, local_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer rows.Close()

	var out []store.PendingOperation
	for rows.Next() {
		var (
			p         store.PendingOperation
			typeStr   string
			amountStr string
			applied   int
			createdMs int64
			synced    int
			syncedMs  sql.NullInt64
		)
		if err := rows.Scan(&p.LocalID, &p.CardUID, &typeStr, &amountStr, &applied, &createdMs, &synced, &syncedMs, &p.SyncError); err != nil {
			return nil, fmt.Errorf("ListPending scan: %w", err)
		}
		p.LedgerApplied = applied == 1
		if p.Type, err = types.ParseTransactionType(typeStr); err != nil {
			return nil, err
		}
		if p.Amount, err = money(amountStr); err != nil {
			return nil, err
		}
		p.CreatedAt = msToTime(createdMs)
		p.Synced = synced == 1
		p.SyncedAt = optionalTime(syncedMs)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *OfflineStore) MarkSynced(ctx context.Context, localID string) error {
	_, err := s.conn.ExecContext(ctx, `
UPDATE pending_operations SET synced = 1, synced_at_ms = ?, sync_error = ''
WHERE local_id = ? AND synced = 0;
`, time.Now().UnixMilli(), localID)
	if err != nil {
		return fmt.Errorf("MarkSynced: %w", err)
	}
	return nil
}

func (s *OfflineStore) MarkSyncError(ctx context.Context, localID string, msg string) error {
	_, err := s.conn.ExecContext(ctx, `
UPDATE pending_operations SET sync_error = ? WHERE local_id = ? AND synced = 0;
`, msg, localID)
	if err != nil {
		return fmt.Errorf("MarkSyncError: %w", err)
	}
	return nil
}
