package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/domain"
)

// Options configures the PostgreSQL connection pool.
type Options struct {
	DSN            string
	MaxConnections int
}

// ErrMissingDSN indicates no connection string was configured.
var ErrMissingDSN = errors.New("ledger DSN is required")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool  *pgxpool.Pool
	nowFn func() time.Time
}

// NewPostgresStore opens the pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, opts Options) (*PostgresStore, error) {
	if opts.DSN == "" {
		return nil, ErrMissingDSN
	}
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	if opts.MaxConnections > 0 {
		cfg.MaxConns = int32(opts.MaxConnections)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ledger pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	return &PostgresStore{pool: pool, nowFn: time.Now}, nil
}

// Migrate creates the ledger tables when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Balance(ctx context.Context, ref domain.AccountRef) (domain.Balance, error) {
	return balanceOf(ctx, s.pool, ref)
}

func (s *PostgresStore) Balances(ctx context.Context, userID string) ([]domain.Balance, error) {
	out := make([]domain.Balance, 0, 2)
	for _, kind := range []domain.AccountKind{domain.AccountHolding, domain.AccountWallet} {
		b, err := balanceOf(ctx, s.pool, domain.AccountRef{UserID: userID, Kind: kind})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *PostgresStore) Credit(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal, reason, reference string) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, ErrInvalidAmount
	}
	var entry domain.LedgerEntry
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = s.apply(ctx, tx, ref, amount, reason, reference)
		return err
	})
	return entry, err
}

func (s *PostgresStore) Debit(ctx context.Context, ref domain.AccountRef, amount decimal.Decimal, reason, reference string) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, ErrInvalidAmount
	}
	var entry domain.LedgerEntry
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = s.apply(ctx, tx, ref, amount.Neg(), reason, reference)
		return err
	})
	return entry, err
}

func (s *PostgresStore) Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, kind, delta::text, balance_after::text, reason, reference, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e            domain.LedgerEntry
			kind         string
			delta, after string
		)
		if err := rows.Scan(&e.ID, &e.Account.UserID, &kind, &delta, &after, &e.Reason, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Account.Kind = domain.AccountKind(kind)
		if e.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, err
		}
		if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordPurchase(ctx context.Context, ico domain.IcoTransaction) (bool, error) {
	if ico.ID == "" {
		ico.ID = uuid.NewString()
	}
	if ico.CreatedAt.IsZero() {
		ico.CreatedAt = s.now()
	}

	var created bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ico_transactions (id, user_id, type, status, token_amount, fiat_amount, price_inr, source_id, created_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9)
			ON CONFLICT (source_id) DO NOTHING`,
			ico.ID, ico.UserID, ico.Type, ico.Status,
			ico.TokenAmount.String(), ico.FiatAmount.String(), ico.PriceINR.String(),
			ico.SourceID, ico.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert ico transaction %s: %w", ico.SourceID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		if ico.Type != domain.IcoBuy || ico.Status != domain.IcoCompleted {
			return nil
		}
		_, err = s.apply(ctx, tx, holding(ico.UserID), ico.TokenAmount, ReasonPurchase, ico.SourceID)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *PostgresStore) BuyVolumeSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		SELECT coalesce(sum(token_amount), 0)::text
		FROM ico_transactions
		WHERE user_id = $1 AND type = $2 AND status = $3 AND created_at >= $4`,
		userID, domain.IcoBuy, domain.IcoCompleted, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum buy volume for %s: %w", userID, err)
	}
	return decimal.NewFromString(total)
}

// SwapWalletToTokens debits the wallet by the fiat amount, credits the
// tokens to the holding and records the completed buy in one transaction.
func (s *PostgresStore) SwapWalletToTokens(ctx context.Context, ico domain.IcoTransaction) (SwapReceipt, error) {
	if !ico.FiatAmount.IsPositive() || !ico.TokenAmount.IsPositive() {
		return SwapReceipt{}, ErrInvalidAmount
	}
	if ico.ID == "" {
		ico.ID = uuid.NewString()
	}
	if ico.CreatedAt.IsZero() {
		ico.CreatedAt = s.now()
	}

	var receipt SwapReceipt
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ico_transactions (id, user_id, type, status, token_amount, fiat_amount, price_inr, source_id, created_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9)
			ON CONFLICT (source_id) DO NOTHING`,
			ico.ID, ico.UserID, ico.Type, ico.Status,
			ico.TokenAmount.String(), ico.FiatAmount.String(), ico.PriceINR.String(),
			ico.SourceID, ico.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert swap %s: %w", ico.SourceID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("swap %s: %w", ico.SourceID, ErrConflict)
		}
		if receipt.Wallet, err = s.apply(ctx, tx, wallet(ico.UserID), ico.FiatAmount.Neg(), ReasonSwap, ico.SourceID); err != nil {
			return err
		}
		receipt.Holding, err = s.apply(ctx, tx, holding(ico.UserID), ico.TokenAmount, ReasonPurchase, ico.SourceID)
		return err
	})
	if err != nil {
		return SwapReceipt{}, err
	}
	return receipt, nil
}

// CreditReferralRedemption credits redeemed referral earnings to the wallet
// once per redemption id. A repeated id returns the original entry and false.
func (s *PostgresStore) CreditReferralRedemption(ctx context.Context, userID, redemptionID string, amount decimal.Decimal) (domain.LedgerEntry, bool, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, false, ErrInvalidAmount
	}

	var (
		entry   domain.LedgerEntry
		created bool
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO referral_redemptions (id, user_id, amount, created_at)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (id) DO NOTHING`,
			redemptionID, userID, amount.String(), s.now())
		if err != nil {
			return fmt.Errorf("insert redemption %s: %w", redemptionID, err)
		}
		if tag.RowsAffected() == 0 {
			entry, err = entryByReference(ctx, tx, ReasonReferralRedeem, redemptionID)
			return err
		}
		created = true
		entry, err = s.apply(ctx, tx, wallet(userID), amount, ReasonReferralRedeem, redemptionID)
		return err
	})
	if err != nil {
		return domain.LedgerEntry{}, false, err
	}
	return entry, created, nil
}

func (s *PostgresStore) OpenStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error) {
	now := s.now()
	pos.Version = 1
	pos.CreatedAt = now
	pos.UpdatedAt = now

	history, withdrawal, err := encodeStakeJSON(pos)
	if err != nil {
		return domain.StakingPosition{}, err
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.apply(ctx, tx, holding(pos.UserID), pos.TokenAmount.Neg(), ReasonStakeOpen, pos.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO staking_positions (
				id, user_id, token_amount, stack_type, duration_months, interest_rate,
				monthly_interest, interest_amount, expected_return, status, started_at,
				matures_at, claimed_at, interest_history, withdrawal, version, created_at, updated_at)
			VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
				$10, $11, $12, $13, $14::jsonb, $15::jsonb, $16, $17, $18)`,
			pos.ID, pos.UserID, pos.TokenAmount.String(), string(pos.StackType), pos.DurationMonths,
			pos.InterestRate.String(), pos.MonthlyInterestAmount.String(), pos.InterestAmount.String(),
			pos.ExpectedReturn.String(), string(pos.Status), pos.StartedAt, pos.MaturesAt, pos.ClaimedAt,
			history, withdrawal, pos.Version, pos.CreatedAt, pos.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("stake %s: %w", pos.ID, ErrConflict)
			}
			return fmt.Errorf("insert stake %s: %w", pos.ID, err)
		}
		return nil
	})
	if err != nil {
		return domain.StakingPosition{}, err
	}
	return pos, nil
}

func (s *PostgresStore) GetStake(ctx context.Context, userID, stakeID string) (domain.StakingPosition, error) {
	row := s.pool.QueryRow(ctx, selectStakeSQL+` WHERE id = $1 AND user_id = $2`, stakeID, userID)
	pos, err := scanStake(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StakingPosition{}, ErrNotFound
	}
	return pos, err
}

func (s *PostgresStore) ListStakes(ctx context.Context, userID string, limit int) ([]domain.StakingPosition, error) {
	rows, err := s.pool.Query(ctx, selectStakeSQL+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stakes for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.StakingPosition
	for rows.Next() {
		pos, err := scanStake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error) {
	var updated domain.StakingPosition
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = s.updateStake(ctx, tx, pos, "")
		return err
	})
	return updated, err
}

func (s *PostgresStore) ClaimStake(ctx context.Context, pos domain.StakingPosition) (domain.StakingPosition, error) {
	var updated domain.StakingPosition
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = s.updateStake(ctx, tx, pos, string(domain.StakeClaimed))
		if err != nil {
			return err
		}
		_, err = s.apply(ctx, tx, holding(pos.UserID), pos.ExpectedReturn, ReasonStakeClaim, pos.ID)
		return err
	})
	return updated, err
}

// updateStake writes pos when the stored version still matches. A non-empty
// excludeStatus additionally refuses rows already in that status.
func (s *PostgresStore) updateStake(ctx context.Context, q querier, pos domain.StakingPosition, excludeStatus string) (domain.StakingPosition, error) {
	history, withdrawal, err := encodeStakeJSON(pos)
	if err != nil {
		return domain.StakingPosition{}, err
	}
	now := s.now()
	tag, err := q.Exec(ctx, `
		UPDATE staking_positions
		SET status = $1, claimed_at = $2, interest_history = $3::jsonb, withdrawal = $4::jsonb,
		    version = version + 1, updated_at = $5
		WHERE id = $6 AND user_id = $7 AND version = $8 AND ($9 = '' OR status <> $9)`,
		string(pos.Status), pos.ClaimedAt, history, withdrawal, now,
		pos.ID, pos.UserID, pos.Version, excludeStatus)
	if err != nil {
		return domain.StakingPosition{}, fmt.Errorf("update stake %s: %w", pos.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM staking_positions WHERE id = $1 AND user_id = $2)`, pos.ID, pos.UserID).Scan(&exists); err != nil {
			return domain.StakingPosition{}, fmt.Errorf("check stake %s: %w", pos.ID, err)
		}
		if !exists {
			return domain.StakingPosition{}, ErrNotFound
		}
		return domain.StakingPosition{}, ErrConflict
	}
	pos.Version++
	pos.UpdatedAt = now
	return pos, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	meta := "{}"
	if len(n.Metadata) > 0 {
		raw, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("encode notification metadata: %w", err)
		}
		meta = string(raw)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, meta, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification for %s: %w", n.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, message, type, metadata::text, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n    domain.Notification
			meta string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &meta, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode notification metadata: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, s.now())
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) KYCStatus(ctx context.Context, userID string) (domain.KYCStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM kyc_records WHERE user_id = $1`, userID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.KYCNotSubmitted, nil
	}
	if err != nil {
		return "", fmt.Errorf("get kyc status for %s: %w", userID, err)
	}
	return domain.KYCStatus(status), nil
}

func (s *PostgresStore) SetKYCStatus(ctx context.Context, userID string, status domain.KYCStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kyc_records (user_id, status, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		userID, string(status), s.now())
	if err != nil {
		return fmt.Errorf("set kyc status for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) now() time.Time {
	return s.nowFn().UTC()
}

// apply moves one balance by delta and records the ledger entry. Credits
// upsert the balance row; debits only succeed while the result stays
// non-negative.
func (s *PostgresStore) apply(ctx context.Context, q querier, ref domain.AccountRef, delta decimal.Decimal, reason, reference string) (domain.LedgerEntry, error) {
	if delta.IsZero() {
		return domain.LedgerEntry{}, ErrInvalidAmount
	}
	now := s.now()

	var after string
	var err error
	if delta.IsPositive() {
		err = q.QueryRow(ctx, `
			INSERT INTO balances (user_id, kind, amount, updated_at) VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (user_id, kind) DO UPDATE
			SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
			RETURNING amount::text`,
			ref.UserID, string(ref.Kind), delta.String(), now).Scan(&after)
	} else {
		err = q.QueryRow(ctx, `
			UPDATE balances SET amount = amount + $3::numeric, updated_at = $4
			WHERE user_id = $1 AND kind = $2 AND amount + $3::numeric >= 0
			RETURNING amount::text`,
			ref.UserID, string(ref.Kind), delta.String(), now).Scan(&after)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerEntry{}, ErrInsufficientHolding
		}
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("apply %s to %s/%s: %w", delta, ref.UserID, ref.Kind, err)
	}

	balanceAfter, err := decimal.NewFromString(after)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	entry := domain.LedgerEntry{
		ID:           uuid.NewString(),
		Account:      ref,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		Reason:       reason,
		Reference:    reference,
		CreatedAt:    now,
	}
	_, err = q.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, delta, balance_after, reason, reference, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)`,
		entry.ID, ref.UserID, string(ref.Kind), delta.String(), after, reason, reference, now)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}

func entryByReference(ctx context.Context, q querier, reason, reference string) (domain.LedgerEntry, error) {
	var (
		e            domain.LedgerEntry
		kind         string
		delta, after string
	)
	err := q.QueryRow(ctx, `
		SELECT id, user_id, kind, delta::text, balance_after::text, reason, reference, created_at
		FROM ledger_entries
		WHERE reason = $1 AND reference = $2
		ORDER BY created_at
		LIMIT 1`, reason, reference).Scan(&e.ID, &e.Account.UserID, &kind, &delta, &after, &e.Reason, &e.Reference, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("get ledger entry %s/%s: %w", reason, reference, err)
	}
	e.Account.Kind = domain.AccountKind(kind)
	if e.Delta, err = decimal.NewFromString(delta); err != nil {
		return domain.LedgerEntry{}, err
	}
	if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return domain.LedgerEntry{}, err
	}
	return e, nil
}

func balanceOf(ctx context.Context, q querier, ref domain.AccountRef) (domain.Balance, error) {
	b := domain.Balance{Account: ref, Amount: decimal.Zero}
	var amount string
	err := q.QueryRow(ctx, `SELECT amount::text, updated_at FROM balances WHERE user_id = $1 AND kind = $2`,
		ref.UserID, string(ref.Kind)).Scan(&amount, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return domain.Balance{}, fmt.Errorf("get balance %s/%s: %w", ref.UserID, ref.Kind, err)
	}
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Balance{}, err
	}
	return b, nil
}
