package sqlite

const schemaSQL = `
-- Search queries: one row per analysis request
CREATE TABLE IF NOT EXISTS search_query (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	criteria TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_query_criteria ON search_query(criteria, created_at DESC);

-- Raw results: unclassified items from external sources.
-- (search_query_id, content_hash) is unique: ingestion is idempotent by hash.
CREATE TABLE IF NOT EXISTS search_result_raw (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	search_query_id INTEGER NOT NULL REFERENCES search_query(id),
	source TEXT NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(search_query_id, content_hash)
);

-- Structured results: classified raw results
CREATE TABLE IF NOT EXISTS search_result_structured (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_result_id INTEGER NOT NULL REFERENCES search_result_raw(id),
	category TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	date_found TEXT,
	applicant TEXT,
	summary TEXT,
	payload TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_structured_raw ON search_result_structured(raw_result_id);

-- Run audit trail: append-only, never read by pipeline logic
CREATE TABLE IF NOT EXISTS search_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	search_query_id INTEGER NOT NULL REFERENCES search_query(id),
	message TEXT NOT NULL,
	log_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_log_query ON search_log(search_query_id, log_time);
`
