// Copyright (c) Microsoft. All rights reserved.

package sqlitestore

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	role       TEXT    NOT NULL,
	body       TEXT    NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, seq);
`
