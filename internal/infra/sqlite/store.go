// SQLite-backed ledger persistence.
// Accounts, positions, boosts, and the transaction log live in one database
// file; a Save commits the whole account aggregate in a single SQL
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/minifi-app/minifi/internal/domain"
)

// DB wraps the SQLite handle and implements domain.LedgerStore.
type DB struct {
	db *sql.DB
}

// Open creates or opens the ledger database under dir and applies migrations.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "ledger.db")
	sdb, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes at the driver level; a single connection
	// avoids SQLITE_BUSY between the pool's connections.
	sdb.SetMaxOpenConns(1)

	db := &DB{db: sdb}
	if err := db.migrate(); err != nil {
		sdb.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying database.
func (db *DB) Close() error { return db.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id      TEXT PRIMARY KEY,
			points_balance  INTEGER NOT NULL DEFAULT 0,
			lifetime_points INTEGER NOT NULL DEFAULT 0,
			streak_days     INTEGER NOT NULL DEFAULT 0,
			last_active_day TEXT NOT NULL DEFAULT '',
			updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id              TEXT PRIMARY KEY,
			account_id      TEXT NOT NULL REFERENCES accounts(account_id),
			pool_id         TEXT NOT NULL,
			principal       INTEGER NOT NULL,
			staked_at       TEXT NOT NULL,
			unlocks_at      TEXT NOT NULL,
			last_accrual_at TEXT NOT NULL,
			pending_rewards INTEGER NOT NULL DEFAULT 0,
			total_earned    INTEGER NOT NULL DEFAULT 0,
			closed          INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account ON positions(account_id)`,

		`CREATE TABLE IF NOT EXISTS boosts (
			id             TEXT PRIMARY KEY,
			account_id     TEXT NOT NULL REFERENCES accounts(account_id),
			offer_id       TEXT NOT NULL,
			multiplier_bps INTEGER NOT NULL,
			activated_at   TEXT NOT NULL,
			expires_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_boosts_account ON boosts(account_id)`,

		// Append-only: rows are inserted once and never updated. seq keeps
		// the ledger-replay order stable across reloads.
		`CREATE TABLE IF NOT EXISTS transactions (
			seq                INTEGER PRIMARY KEY AUTOINCREMENT,
			id                 TEXT NOT NULL UNIQUE,
			account_id         TEXT NOT NULL REFERENCES accounts(account_id),
			kind               TEXT NOT NULL,
			amount             INTEGER NOT NULL,
			ts                 TEXT NOT NULL,
			resulting_balance  INTEGER NOT NULL,
			source_position_id TEXT NOT NULL DEFAULT '',
			description        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, seq)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// ─── LedgerStore ────────────────────────────────────────────────────────────

const timeFmt = time.RFC3339Nano

// Load reads the full account aggregate. The returned ledger is owned by the
// caller. Unknown accounts yield domain.ErrAccountNotFound.
func (db *DB) Load(ctx context.Context, accountID string) (*domain.AccountLedger, error) {
	l := domain.NewAccountLedger(accountID)

	var lastActive string
	err := db.db.QueryRowContext(ctx, `
		SELECT points_balance, lifetime_points, streak_days, last_active_day
		FROM accounts WHERE account_id = ?
	`, accountID).Scan(&l.PointsBalance, &l.LifetimePointsEarned, &l.StreakDays, &lastActive)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load account %s: %v", domain.ErrPersistenceFailure, accountID, err)
	}
	if lastActive != "" {
		if l.LastActiveDay, err = time.Parse(timeFmt, lastActive); err != nil {
			return nil, fmt.Errorf("%w: account %s last_active_day: %v", domain.ErrPersistenceFailure, accountID, err)
		}
	}

	if l.Positions, err = db.loadPositions(ctx, accountID); err != nil {
		return nil, err
	}
	if l.Boosts, err = db.loadBoosts(ctx, accountID); err != nil {
		return nil, err
	}
	if l.Transactions, err = db.loadTransactions(ctx, accountID); err != nil {
		return nil, err
	}
	return l, nil
}

func (db *DB) loadPositions(ctx context.Context, accountID string) ([]*domain.StakePosition, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, pool_id, principal, staked_at, unlocks_at, last_accrual_at,
		       pending_rewards, total_earned, closed
		FROM positions WHERE account_id = ? ORDER BY staked_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: load positions: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []*domain.StakePosition
	for rows.Next() {
		p := &domain.StakePosition{AccountID: accountID}
		var stakedAt, unlocksAt, lastAccrual string
		var closed int
		if err := rows.Scan(&p.ID, &p.PoolID, &p.Principal, &stakedAt, &unlocksAt,
			&lastAccrual, &p.PendingRewards, &p.TotalEarned, &closed); err != nil {
			return nil, fmt.Errorf("%w: scan position: %v", domain.ErrPersistenceFailure, err)
		}
		if p.StakedAt, err = time.Parse(timeFmt, stakedAt); err != nil {
			return nil, fmt.Errorf("%w: position %s staked_at: %v", domain.ErrPersistenceFailure, p.ID, err)
		}
		if p.UnlocksAt, err = time.Parse(timeFmt, unlocksAt); err != nil {
			return nil, fmt.Errorf("%w: position %s unlocks_at: %v", domain.ErrPersistenceFailure, p.ID, err)
		}
		if p.LastAccrualAt, err = time.Parse(timeFmt, lastAccrual); err != nil {
			return nil, fmt.Errorf("%w: position %s last_accrual_at: %v", domain.ErrPersistenceFailure, p.ID, err)
		}
		p.Closed = closed == 1
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) loadBoosts(ctx context.Context, accountID string) ([]domain.Boost, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, offer_id, multiplier_bps, activated_at, expires_at
		FROM boosts WHERE account_id = ? ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: load boosts: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []domain.Boost
	for rows.Next() {
		var b domain.Boost
		var activatedAt, expiresAt string
		if err := rows.Scan(&b.ID, &b.OfferID, &b.MultiplierBps, &activatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("%w: scan boost: %v", domain.ErrPersistenceFailure, err)
		}
		if b.ActivatedAt, err = time.Parse(timeFmt, activatedAt); err != nil {
			return nil, fmt.Errorf("%w: boost %s activated_at: %v", domain.ErrPersistenceFailure, b.ID, err)
		}
		if b.ExpiresAt, err = time.Parse(timeFmt, expiresAt); err != nil {
			return nil, fmt.Errorf("%w: boost %s expires_at: %v", domain.ErrPersistenceFailure, b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (db *DB) loadTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, kind, amount, ts, resulting_balance, source_position_id, description
		FROM transactions WHERE account_id = ? ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: load transactions: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx := domain.Transaction{AccountID: accountID}
		var kind, ts string
		if err := rows.Scan(&tx.ID, &kind, &tx.Amount, &ts, &tx.ResultingBalance,
			&tx.SourcePositionID, &tx.Description); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", domain.ErrPersistenceFailure, err)
		}
		tx.Kind = domain.TransactionKind(kind)
		if tx.Timestamp, err = time.Parse(timeFmt, ts); err != nil {
			return nil, fmt.Errorf("%w: transaction %s ts: %v", domain.ErrPersistenceFailure, tx.ID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Save commits the whole aggregate in one SQL transaction. Positions and the
// account row are upserted, boosts are replaced, and transaction rows are
// INSERT OR IGNORE so the append-only log never rewrites history.
func (db *DB) Save(ctx context.Context, l *domain.AccountLedger) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistenceFailure, err)
	}
	defer tx.Rollback()

	lastActive := ""
	if !l.LastActiveDay.IsZero() {
		lastActive = l.LastActiveDay.UTC().Format(timeFmt)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, points_balance, lifetime_points, streak_days, last_active_day, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(account_id) DO UPDATE SET
			points_balance  = excluded.points_balance,
			lifetime_points = excluded.lifetime_points,
			streak_days     = excluded.streak_days,
			last_active_day = excluded.last_active_day,
			updated_at      = datetime('now')
	`, l.AccountID, l.PointsBalance, l.LifetimePointsEarned, l.StreakDays, lastActive); err != nil {
		return fmt.Errorf("%w: save account %s: %v", domain.ErrPersistenceFailure, l.AccountID, err)
	}

	for _, p := range l.Positions {
		closed := 0
		if p.Closed {
			closed = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (id, account_id, pool_id, principal, staked_at, unlocks_at,
			                       last_accrual_at, pending_rewards, total_earned, closed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				principal       = excluded.principal,
				last_accrual_at = excluded.last_accrual_at,
				pending_rewards = excluded.pending_rewards,
				total_earned    = excluded.total_earned,
				closed          = excluded.closed
		`, p.ID, l.AccountID, p.PoolID, p.Principal,
			p.StakedAt.UTC().Format(timeFmt), p.UnlocksAt.UTC().Format(timeFmt),
			p.LastAccrualAt.UTC().Format(timeFmt), p.PendingRewards, p.TotalEarned, closed); err != nil {
			return fmt.Errorf("%w: save position %s: %v", domain.ErrPersistenceFailure, p.ID, err)
		}
	}

	// Boosts are replaced wholesale; expired ones pruned in memory disappear
	// from the database on the next Save.
	if _, err := tx.ExecContext(ctx, `DELETE FROM boosts WHERE account_id = ?`, l.AccountID); err != nil {
		return fmt.Errorf("%w: clear boosts: %v", domain.ErrPersistenceFailure, err)
	}
	for _, b := range l.Boosts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO boosts (id, account_id, offer_id, multiplier_bps, activated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, b.ID, l.AccountID, b.OfferID, b.MultiplierBps,
			b.ActivatedAt.UTC().Format(timeFmt), b.ExpiresAt.UTC().Format(timeFmt)); err != nil {
			return fmt.Errorf("%w: save boost %s: %v", domain.ErrPersistenceFailure, b.ID, err)
		}
	}

	for _, rec := range l.Transactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions
				(id, account_id, kind, amount, ts, resulting_balance, source_position_id, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, l.AccountID, string(rec.Kind), rec.Amount,
			rec.Timestamp.UTC().Format(timeFmt), rec.ResultingBalance,
			rec.SourcePositionID, rec.Description); err != nil {
			return fmt.Errorf("%w: save transaction %s: %v", domain.ErrPersistenceFailure, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit account %s: %v", domain.ErrPersistenceFailure, l.AccountID, err)
	}
	return nil
}
