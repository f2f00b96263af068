package sqlite

// Schema is the embedded DDL for the SQLite graph backend. Statements are
// idempotent so the schema can be applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	properties       TEXT,
	confidence_score REAL NOT NULL DEFAULT 0,
	embedding        TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

CREATE TABLE IF NOT EXISTS relationships (
	id               TEXT PRIMARY KEY,
	source_id        TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	target_id        TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	type             TEXT NOT NULL,
	weight           REAL NOT NULL DEFAULT 1.0,
	confidence_score REAL NOT NULL DEFAULT 0,
	properties       TEXT,
	created_at       TIMESTAMP NOT NULL,
	UNIQUE(source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
`
