package store

// Schema contains the complete DDL for the tobe tables.
const Schema = `
-- Settings: one JSON document per key ('settings' for the extension settings)
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Screenshots: every stored capture, newest last
CREATE TABLE IF NOT EXISTS screenshots (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL CHECK (kind IN ('visible', 'selection', 'fullpage')),
    page_url   TEXT NOT NULL DEFAULT '',
    width      INTEGER NOT NULL,
    height     INTEGER NOT NULL,
    segments   INTEGER NOT NULL DEFAULT 1,
    png        BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_screenshots_kind ON screenshots(kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_screenshots_created ON screenshots(created_at DESC);

-- Pending JSON: text selected with "Format JSON", consumed once
CREATE TABLE IF NOT EXISTS pending_json (
    slot          INTEGER PRIMARY KEY CHECK (slot = 1),
    text          TEXT NOT NULL,
    is_valid_json INTEGER NOT NULL,
    created_at    INTEGER NOT NULL
);

-- Tree state: expanded/collapsed shape of a formatted document
CREATE TABLE IF NOT EXISTS tree_state (
    doc_key    TEXT PRIMARY KEY,
    state      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
