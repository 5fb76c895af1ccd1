package store

// migration holds a single schema migration with its target version and
// the statements that bring the schema to it. Statements are kept
// separate so the same list runs on drivers that reject multi-statement
// Exec calls.
type migration struct {
	version int
	stmts   []string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// The SQL sticks to the subset shared by SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMP NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS settings (
	user_id             TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	sync_times          TEXT NOT NULL DEFAULT '[]',
	canvas_ical_url     TEXT NOT NULL DEFAULT '',
	school_email_domain TEXT NOT NULL DEFAULT '',
	last_sync           TIMESTAMP NULL
)`,
			`CREATE TABLE IF NOT EXISTS courses (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	days    TEXT NOT NULL DEFAULT '[]',
	time    TEXT NOT NULL DEFAULT '00:00'
)`,
			`CREATE TABLE IF NOT EXISTS tasks (
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	title       TEXT NOT NULL,
	course      TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMP NOT NULL,
	type        TEXT NOT NULL DEFAULT 'other',
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	source      TEXT NOT NULL DEFAULT 'manual',
	fingerprint TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, id)
)`,
			`CREATE TABLE IF NOT EXISTS pending_tasks (
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	title       TEXT NOT NULL,
	course      TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMP NOT NULL,
	type        TEXT NOT NULL DEFAULT 'other',
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	source      TEXT NOT NULL DEFAULT 'email',
	fingerprint TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, id)
)`,
			`CREATE INDEX IF NOT EXISTS idx_courses_user ON courses(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_user_due ON tasks(user_id, due_date)`,
			`CREATE INDEX IF NOT EXISTS idx_pending_user_due ON pending_tasks(user_id, due_date)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_tasks_fingerprint ON tasks(user_id, fingerprint)`,
			`CREATE INDEX IF NOT EXISTS idx_pending_fingerprint ON pending_tasks(user_id, fingerprint)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
		},
	},
}
