// PostgreSQL-backed ledger persistence for multi-instance deployments.
// Same aggregate contract as the SQLite store; Save commits the whole account
// in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minifi-app/minifi/internal/domain"
)

// Store implements domain.LedgerStore over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL using a connection URL and applies migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks database liveness.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per entry.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id      TEXT PRIMARY KEY,
			points_balance  BIGINT NOT NULL DEFAULT 0,
			lifetime_points BIGINT NOT NULL DEFAULT 0,
			streak_days     INTEGER NOT NULL DEFAULT 0,
			last_active_day TIMESTAMPTZ,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id              TEXT PRIMARY KEY,
			account_id      TEXT NOT NULL REFERENCES accounts(account_id),
			pool_id         TEXT NOT NULL,
			principal       BIGINT NOT NULL,
			staked_at       TIMESTAMPTZ NOT NULL,
			unlocks_at      TIMESTAMPTZ NOT NULL,
			last_accrual_at TIMESTAMPTZ NOT NULL,
			pending_rewards BIGINT NOT NULL DEFAULT 0,
			total_earned    BIGINT NOT NULL DEFAULT 0,
			closed          BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account ON positions(account_id)`,

		`CREATE TABLE IF NOT EXISTS boosts (
			id             TEXT PRIMARY KEY,
			account_id     TEXT NOT NULL REFERENCES accounts(account_id),
			offer_id       TEXT NOT NULL,
			multiplier_bps BIGINT NOT NULL,
			activated_at   TIMESTAMPTZ NOT NULL,
			expires_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_boosts_account ON boosts(account_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			seq                BIGSERIAL PRIMARY KEY,
			id                 TEXT NOT NULL UNIQUE,
			account_id         TEXT NOT NULL REFERENCES accounts(account_id),
			kind               TEXT NOT NULL,
			amount             BIGINT NOT NULL,
			ts                 TIMESTAMPTZ NOT NULL,
			resulting_balance  BIGINT NOT NULL,
			source_position_id TEXT NOT NULL DEFAULT '',
			description        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, seq)`,
	}
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range Migrations() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// ─── LedgerStore ────────────────────────────────────────────────────────────

// Load reads the full account aggregate.
func (s *Store) Load(ctx context.Context, accountID string) (*domain.AccountLedger, error) {
	l := domain.NewAccountLedger(accountID)

	var lastActive *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT points_balance, lifetime_points, streak_days, last_active_day
		FROM accounts WHERE account_id = $1
	`, accountID).Scan(&l.PointsBalance, &l.LifetimePointsEarned, &l.StreakDays, &lastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load account %s: %v", domain.ErrPersistenceFailure, accountID, err)
	}
	if lastActive != nil {
		l.LastActiveDay = lastActive.UTC()
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, pool_id, principal, staked_at, unlocks_at, last_accrual_at,
		       pending_rewards, total_earned, closed
		FROM positions WHERE account_id = $1 ORDER BY staked_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: load positions: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()
	for rows.Next() {
		p := &domain.StakePosition{AccountID: accountID}
		if err := rows.Scan(&p.ID, &p.PoolID, &p.Principal, &p.StakedAt, &p.UnlocksAt,
			&p.LastAccrualAt, &p.PendingRewards, &p.TotalEarned, &p.Closed); err != nil {
			return nil, fmt.Errorf("%w: scan position: %v", domain.ErrPersistenceFailure, err)
		}
		p.StakedAt, p.UnlocksAt, p.LastAccrualAt = p.StakedAt.UTC(), p.UnlocksAt.UTC(), p.LastAccrualAt.UTC()
		l.Positions = append(l.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read positions: %v", domain.ErrPersistenceFailure, err)
	}
	rows.Close()

	rows, err = s.pool.Query(ctx, `
		SELECT id, offer_id, multiplier_bps, activated_at, expires_at
		FROM boosts WHERE account_id = $1 ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: load boosts: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()
	for rows.Next() {
		var b domain.Boost
		if err := rows.Scan(&b.ID, &b.OfferID, &b.MultiplierBps, &b.ActivatedAt, &b.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%w: scan boost: %v", domain.ErrPersistenceFailure, err)
		}
		b.ActivatedAt, b.ExpiresAt = b.ActivatedAt.UTC(), b.ExpiresAt.UTC()
		l.Boosts = append(l.Boosts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read boosts: %v", domain.ErrPersistenceFailure, err)
	}
	rows.Close()

	rows, err = s.pool.Query(ctx, `
		SELECT id, kind, amount, ts, resulting_balance, source_position_id, description
		FROM transactions WHERE account_id = $1 ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: load transactions: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()
	for rows.Next() {
		tx := domain.Transaction{AccountID: accountID}
		var kind string
		if err := rows.Scan(&tx.ID, &kind, &tx.Amount, &tx.Timestamp, &tx.ResultingBalance,
			&tx.SourcePositionID, &tx.Description); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", domain.ErrPersistenceFailure, err)
		}
		tx.Kind = domain.TransactionKind(kind)
		tx.Timestamp = tx.Timestamp.UTC()
		l.Transactions = append(l.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read transactions: %v", domain.ErrPersistenceFailure, err)
	}
	return l, nil
}

// Save commits the whole aggregate in one transaction. Transaction rows use
// ON CONFLICT DO NOTHING so the append-only log never rewrites history.
func (s *Store) Save(ctx context.Context, l *domain.AccountLedger) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistenceFailure, err)
	}
	defer tx.Rollback(ctx)

	var lastActive *time.Time
	if !l.LastActiveDay.IsZero() {
		d := l.LastActiveDay.UTC()
		lastActive = &d
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (account_id, points_balance, lifetime_points, streak_days, last_active_day, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			points_balance  = EXCLUDED.points_balance,
			lifetime_points = EXCLUDED.lifetime_points,
			streak_days     = EXCLUDED.streak_days,
			last_active_day = EXCLUDED.last_active_day,
			updated_at      = NOW()
	`, l.AccountID, l.PointsBalance, l.LifetimePointsEarned, l.StreakDays, lastActive); err != nil {
		return fmt.Errorf("%w: save account %s: %v", domain.ErrPersistenceFailure, l.AccountID, err)
	}

	batch := &pgx.Batch{}
	for _, p := range l.Positions {
		batch.Queue(`
			INSERT INTO positions (id, account_id, pool_id, principal, staked_at, unlocks_at,
			                       last_accrual_at, pending_rewards, total_earned, closed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				principal       = EXCLUDED.principal,
				last_accrual_at = EXCLUDED.last_accrual_at,
				pending_rewards = EXCLUDED.pending_rewards,
				total_earned    = EXCLUDED.total_earned,
				closed          = EXCLUDED.closed
		`, p.ID, l.AccountID, p.PoolID, p.Principal, p.StakedAt, p.UnlocksAt,
			p.LastAccrualAt, p.PendingRewards, p.TotalEarned, p.Closed)
	}
	batch.Queue(`DELETE FROM boosts WHERE account_id = $1`, l.AccountID)
	for _, b := range l.Boosts {
		batch.Queue(`
			INSERT INTO boosts (id, account_id, offer_id, multiplier_bps, activated_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, b.ID, l.AccountID, b.OfferID, b.MultiplierBps, b.ActivatedAt, b.ExpiresAt)
	}
	for _, rec := range l.Transactions {
		batch.Queue(`
			INSERT INTO transactions
				(id, account_id, kind, amount, ts, resulting_balance, source_position_id, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, rec.ID, l.AccountID, string(rec.Kind), rec.Amount, rec.Timestamp,
			rec.ResultingBalance, rec.SourcePositionID, rec.Description)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: save aggregate %s: %v", domain.ErrPersistenceFailure, l.AccountID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit account %s: %v", domain.ErrPersistenceFailure, l.AccountID, err)
	}
	return nil
}
