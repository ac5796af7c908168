package store

// Schema is the contacts DDL. Name parts default to the empty string, which
// the views treat as absent.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id         TEXT PRIMARY KEY,
    first      TEXT NOT NULL DEFAULT '',
    last       TEXT NOT NULL DEFAULT '',
    avatar     TEXT NOT NULL DEFAULT '',
    twitter    TEXT NOT NULL DEFAULT '',
    notes      TEXT NOT NULL DEFAULT '',
    favorite   INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contacts_order ON contacts(last COLLATE NOCASE, created_at);
`
