package postgres

// Schema is the full database schema applied by cmd/migrate. Statements are
// idempotent so the migrator can be re-run against an existing database.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	icon       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS family_members (
	family_id BIGINT NOT NULL,
	user_id   BIGINT NOT NULL,
	PRIMARY KEY (family_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_family_members_user ON family_members (user_id);

CREATE TABLE IF NOT EXISTS wallets (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id      BIGINT NOT NULL,
	family_id    BIGINT,
	name         TEXT NOT NULL,
	wallet_type  TEXT NOT NULL DEFAULT 'cash',
	balance      BIGINT NOT NULL DEFAULT 0,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	is_shared    BOOLEAN NOT NULL DEFAULT FALSE,
	is_default   BOOLEAN NOT NULL DEFAULT FALSE,
	can_view     BIGINT[] NOT NULL DEFAULT '{}',
	can_transact BIGINT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_wallets_user ON wallets (user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_default
	ON wallets (user_id) WHERE is_default;

CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	user_id     BIGINT NOT NULL,
	wallet_id   TEXT NOT NULL REFERENCES wallets (id),
	amount      BIGINT NOT NULL,
	type        TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	category_id TEXT REFERENCES categories (id),
	date        TIMESTAMPTZ NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_shared   BOOLEAN NOT NULL DEFAULT FALSE,
	is_deleted  BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at  TIMESTAMPTZ,
	source      TEXT NOT NULL DEFAULT 'manual',
	raw_text    TEXT,
	confidence  DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_date
	ON transactions (user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions (wallet_id);
CREATE INDEX IF NOT EXISTS idx_transactions_category
	ON transactions (category_id) WHERE category_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS budgets (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id      BIGINT NOT NULL,
	family_id    BIGINT,
	name         TEXT NOT NULL,
	period_type  TEXT NOT NULL CHECK (period_type IN ('daily', 'weekly', 'monthly')),
	amount       BIGINT NOT NULL,
	spent        BIGINT NOT NULL DEFAULT 0,
	period_start TIMESTAMPTZ NOT NULL,
	period_end   TIMESTAMPTZ NOT NULL,
	category_id  TEXT REFERENCES categories (id),
	parent_id    TEXT REFERENCES budgets (id),
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	goal         JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_budgets_user ON budgets (user_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_budgets_family
	ON budgets (family_id) WHERE family_id IS NOT NULL AND is_active;

CREATE TABLE IF NOT EXISTS goals (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id            BIGINT NOT NULL,
	name               TEXT NOT NULL,
	target_amount      BIGINT NOT NULL,
	current_progress   BIGINT NOT NULL DEFAULT 0,
	deadline           TIMESTAMPTZ,
	status             TEXT NOT NULL DEFAULT 'active'
		CHECK (status IN ('active', 'completed', 'expired', 'cancelled')),
	associated_wallets TEXT[] NOT NULL DEFAULT '{}',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_goals_user ON goals (user_id) WHERE status = 'active';

CREATE OR REPLACE FUNCTION notify_ledger_changed() RETURNS trigger AS $$
DECLARE
	rec transactions%ROWTYPE;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('ledger_changed', json_build_object(
		'transaction_id', rec.id,
		'user_id', rec.user_id,
		'category_id', rec.category_id,
		'date', to_char(rec.date, 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
		'type', rec.type
	)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_transactions_ledger_changed ON transactions;
CREATE TRIGGER trg_transactions_ledger_changed
	AFTER INSERT OR UPDATE OR DELETE ON transactions
	FOR EACH ROW EXECUTE FUNCTION notify_ledger_changed();
`
