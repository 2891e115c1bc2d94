package store

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER NOT NULL,
	applied_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	date              TEXT NOT NULL,
	clock             TEXT NOT NULL,
	recipients        TEXT NOT NULL DEFAULT '',
	-- legacy single-recipient column; normalized into recipients on read
	child             TEXT,
	category          TEXT NOT NULL DEFAULT '',
	recurring         INTEGER NOT NULL DEFAULT 0,
	template_id       TEXT,
	completed         INTEGER NOT NULL DEFAULT 0,
	notified          INTEGER NOT NULL DEFAULT 0,
	send_notification INTEGER NOT NULL DEFAULT 1,
	needs_ack         INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_date ON tasks(date);
CREATE INDEX IF NOT EXISTS idx_tasks_remindable ON tasks(completed, send_notification, date);

CREATE TABLE IF NOT EXISTS subscriptions (
	endpoint     TEXT PRIMARY KEY,
	p256dh       TEXT NOT NULL,
	auth         TEXT NOT NULL,
	owner        TEXT NOT NULL DEFAULT '',
	receive_all  INTEGER NOT NULL DEFAULT 0,
	watch        TEXT NOT NULL DEFAULT '',
	lead_minutes INTEGER NOT NULL DEFAULT 15,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dispatches (
	key     TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	sent_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatches_task ON dispatches(task_id);
`,
	},
}
