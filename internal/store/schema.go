package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS site (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session (
  id TEXT PRIMARY KEY,
  site_id TEXT NOT NULL,
  start TEXT NOT NULL,
  finish TEXT,
  type TEXT,
  args TEXT,
  run TEXT,
  updated_at TEXT NOT NULL,
  UNIQUE(site_id, start),
  FOREIGN KEY(site_id) REFERENCES site(id)
);

CREATE TABLE IF NOT EXISTS trace (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  task TEXT NOT NULL,
  start TEXT NOT NULL,
  finish TEXT NOT NULL,
  type TEXT NOT NULL,
  optype TEXT NOT NULL,
  agent TEXT,
  data TEXT NOT NULL,
  UNIQUE(session_id, task, start),
  FOREIGN KEY(session_id) REFERENCES session(id)
);

CREATE INDEX IF NOT EXISTS idx_trace_session_type ON trace(session_id, type);
`
