package shield

import "database/sql"

// Schema holds the operator-controlled tables read by the stack. Contact
// creation (POST /) is limited to 30 per minute per client by default.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS maintenance (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    active  INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT 'Contacts is down for maintenance.'
);

INSERT OR IGNORE INTO maintenance (id, active) VALUES (1, 0);
INSERT OR IGNORE INTO rate_limits (endpoint, max_requests, window_seconds) VALUES ('POST /', 30, 60);
`

// Init applies Schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
