package ledger

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		user_id    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		amount     NUMERIC(30, 8) NOT NULL DEFAULT 0 CHECK (amount >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		kind          TEXT NOT NULL,
		delta         NUMERIC(30, 8) NOT NULL,
		balance_after NUMERIC(30, 8) NOT NULL,
		reason        TEXT NOT NULL,
		reference     TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_user_idx ON ledger_entries (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_reference_idx ON ledger_entries (reason, reference)`,
	`CREATE TABLE IF NOT EXISTS ico_transactions (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		type         TEXT NOT NULL,
		status       TEXT NOT NULL,
		token_amount NUMERIC(30, 8) NOT NULL,
		fiat_amount  NUMERIC(30, 8) NOT NULL,
		price_inr    NUMERIC(30, 8) NOT NULL,
		source_id    TEXT NOT NULL UNIQUE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ico_transactions_user_idx ON ico_transactions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS referral_redemptions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		amount     NUMERIC(30, 8) NOT NULL CHECK (amount > 0),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staking_positions (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		token_amount     NUMERIC(30, 8) NOT NULL,
		stack_type       TEXT NOT NULL,
		duration_months  INTEGER NOT NULL,
		interest_rate    NUMERIC(10, 4) NOT NULL,
		monthly_interest NUMERIC(30, 8) NOT NULL,
		interest_amount  NUMERIC(30, 8) NOT NULL,
		expected_return  NUMERIC(30, 8) NOT NULL,
		status           TEXT NOT NULL,
		started_at       TIMESTAMPTZ NOT NULL,
		matures_at       TIMESTAMPTZ NOT NULL,
		claimed_at       TIMESTAMPTZ,
		interest_history JSONB NOT NULL DEFAULT '[]',
		withdrawal       JSONB NOT NULL DEFAULT '{}',
		version          BIGINT NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS staking_positions_user_idx ON staking_positions (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		type       TEXT NOT NULL,
		metadata   JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS kyc_records (
		user_id    TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
