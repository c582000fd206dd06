package sqlitestore

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    user_id              TEXT PRIMARY KEY,
    active               INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS accounts (
    account_id           TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    name                 TEXT NOT NULL,
    currency             TEXT NOT NULL,
    account_type         TEXT NOT NULL,
    opening_balance      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    transaction_id       TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    account_id           TEXT NOT NULL,
    category_id          TEXT,
    tx_type              TEXT NOT NULL,
    amount               TEXT NOT NULL,
    tx_date              TEXT NOT NULL,
    description          TEXT
);

CREATE TABLE IF NOT EXISTS budgets (
    budget_id            TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    category_id          TEXT,
    amount               TEXT NOT NULL,
    period               TEXT NOT NULL,
    start_date           TEXT NOT NULL,
    end_date             TEXT
);

CREATE TABLE IF NOT EXISTS goals (
    goal_id              TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    name                 TEXT NOT NULL,
    target_amount        TEXT NOT NULL,
    current_amount       TEXT NOT NULL,
    target_date          TEXT
);

CREATE TABLE IF NOT EXISTS notification_preferences (
    user_id              TEXT PRIMARY KEY,
    budget_alerts        INTEGER NOT NULL DEFAULT 1,
    goal_reminders       INTEGER NOT NULL DEFAULT 1,
    transaction_alerts   INTEGER NOT NULL DEFAULT 1,
    email_notifications  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS notifications (
    notification_id      TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    notification_type    TEXT NOT NULL,
    subject_id           TEXT NOT NULL,
    period_key           TEXT NOT NULL,
    title                TEXT NOT NULL,
    message              TEXT NOT NULL,
    payload              TEXT,
    created_at           TEXT NOT NULL,
    read_at              TEXT,
    action_ref           TEXT,
    expires_at           TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, tx_date);
CREATE INDEX IF NOT EXISTS idx_budgets_user ON budgets(user_id);
CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id);
CREATE INDEX IF NOT EXISTS idx_notifications_dedup ON notifications(user_id, notification_type, subject_id, period_key);
CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
`
