package storage

// The partial unique index on open entries backs the one-open-entry-per-worker rule.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS workers (
		id          BIGSERIAL PRIMARY KEY,
		uid         TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL DEFAULT 'USER',
		status      TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id           BIGSERIAL PRIMARY KEY,
		name         TEXT NOT NULL,
		kind         TEXT NOT NULL DEFAULT 'SYSTEM',
		priority     INTEGER NOT NULL DEFAULT 0,
		default_list TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id            BIGSERIAL PRIMARY KEY,
		worker_id     BIGINT NOT NULL REFERENCES workers(id),
		category_id   BIGINT NOT NULL REFERENCES categories(id),
		category_name TEXT NOT NULL,
		start_time    TIMESTAMPTZ NOT NULL,
		end_time      TIMESTAMPTZ,
		duration      BIGINT,
		is_manual     BOOLEAN NOT NULL DEFAULT FALSE,
		is_edited     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_worker_start ON time_entries (worker_id, start_time)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_one_open ON time_entries (worker_id) WHERE end_time IS NULL`,
	`CREATE TABLE IF NOT EXISTS worker_preferences (
		worker_id     BIGINT PRIMARY KEY REFERENCES workers(id),
		primary_ids   BIGINT[] NOT NULL DEFAULT '{}',
		secondary_ids BIGINT[] NOT NULL DEFAULT '{}',
		hidden_ids    BIGINT[] NOT NULL DEFAULT '{}',
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS daily_status (
		worker_id  BIGINT NOT NULL REFERENCES workers(id),
		day        DATE NOT NULL,
		has_left   BOOLEAN NOT NULL DEFAULT FALSE,
		is_fixed   BOOLEAN NOT NULL DEFAULT FALSE,
		left_at    TIMESTAMPTZ,
		fixed_at   TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (worker_id, day)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS workers (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		uid        TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL DEFAULT 'USER',
		status     TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL,
		kind         TEXT NOT NULL DEFAULT 'SYSTEM',
		priority     INTEGER NOT NULL DEFAULT 0,
		default_list TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id     INTEGER NOT NULL REFERENCES workers(id),
		category_id   INTEGER NOT NULL REFERENCES categories(id),
		category_name TEXT NOT NULL,
		start_time    TEXT NOT NULL,
		end_time      TEXT,
		duration      INTEGER,
		is_manual     INTEGER NOT NULL DEFAULT 0,
		is_edited     INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_worker_start ON time_entries (worker_id, start_time)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_one_open ON time_entries (worker_id) WHERE end_time IS NULL`,
	`CREATE TABLE IF NOT EXISTS worker_preferences (
		worker_id  INTEGER PRIMARY KEY REFERENCES workers(id),
		layout     TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_status (
		worker_id  INTEGER NOT NULL REFERENCES workers(id),
		day        TEXT NOT NULL,
		has_left   INTEGER NOT NULL DEFAULT 0,
		is_fixed   INTEGER NOT NULL DEFAULT 0,
		left_at    TEXT,
		fixed_at   TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (worker_id, day)
	)`,
}
