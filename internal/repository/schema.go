package repository

const schema = `
CREATE TABLE IF NOT EXISTS users (
    telegram_id BIGINT PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_withdrawn BIGINT NOT NULL DEFAULT 0,
    total_tasks INT NOT NULL DEFAULT 0,
    total_ads INT NOT NULL DEFAULT 0,
    total_promo_codes INT NOT NULL DEFAULT 0,
    referred_by BIGINT REFERENCES users(telegram_id),
    referral_code TEXT NOT NULL UNIQUE,
    referrals INT NOT NULL DEFAULT 0,
    referral_earnings BIGINT NOT NULL DEFAULT 0,
    referral_state TEXT,
    status TEXT NOT NULL DEFAULT 'free',
    ban_reason TEXT,
    welcome_tasks_completed BOOLEAN NOT NULL DEFAULT FALSE,
    welcome_tasks_completed_at TIMESTAMPTZ,
    welcome_message_sent BOOLEAN NOT NULL DEFAULT FALSE,
    last_withdrawal_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_active TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    kind TEXT NOT NULL,
    category TEXT NOT NULL,
    reward BIGINT NOT NULL,
    current_completions INT NOT NULL DEFAULT 0,
    max_completions INT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    check_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    created_by BIGINT REFERENCES users(telegram_id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK (current_completions <= max_completions)
);

CREATE TABLE IF NOT EXISTS completed_tasks (
    user_telegram_id BIGINT NOT NULL REFERENCES users(telegram_id),
    task_id UUID NOT NULL REFERENCES tasks(id),
    reward BIGINT NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_telegram_id, task_id)
);

CREATE TABLE IF NOT EXISTS referrals (
    referrer_id BIGINT NOT NULL REFERENCES users(telegram_id),
    referred_id BIGINT NOT NULL REFERENCES users(telegram_id),
    state TEXT NOT NULL DEFAULT 'pending',
    bonus_given BOOLEAN NOT NULL DEFAULT FALSE,
    bonus_amount BIGINT NOT NULL DEFAULT 0,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    verified_at TIMESTAMPTZ,
    PRIMARY KEY (referrer_id, referred_id)
);

CREATE TABLE IF NOT EXISTS referral_payouts (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL REFERENCES users(telegram_id),
    referred_id BIGINT NOT NULL REFERENCES users(telegram_id),
    task_reward BIGINT NOT NULL,
    bonus BIGINT NOT NULL,
    percentage INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS promo_codes (
    id UUID PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    reward BIGINT NOT NULL,
    max_uses INT NOT NULL DEFAULT 0,
    used_count INT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS used_promo_codes (
    user_telegram_id BIGINT NOT NULL REFERENCES users(telegram_id),
    promo_id UUID NOT NULL REFERENCES promo_codes(id),
    code TEXT NOT NULL,
    reward BIGINT NOT NULL,
    claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_telegram_id, promo_id)
);

CREATE TABLE IF NOT EXISTS withdrawals (
    id UUID PRIMARY KEY,
    user_telegram_id BIGINT NOT NULL REFERENCES users(telegram_id),
    wallet_address TEXT NOT NULL,
    amount BIGINT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS app_stats (
    name TEXT PRIMARY KEY,
    value BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tasks_status_category ON tasks (status, category);
CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals (user_telegram_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_referrals_referred ON referrals (referred_id);
`
