package sqlite

import "database/sql"

// Schema creates the records table. All statements are idempotent.
//
// Timestamps are stored as fixed-width UTC text (see timeLayout) so that
// delivery_at compares correctly as a string in QueryDue.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    content TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT 'text',
    filename TEXT,
    title TEXT,
    recipient TEXT,
    message TEXT,
    created_at TEXT NOT NULL,

    -- Delivery state machine
    delivery_at TEXT,
    delivery_state TEXT NOT NULL DEFAULT 'unscheduled'
        CHECK (delivery_state IN ('unscheduled', 'pending', 'delivered', 'failed')),
    delivered_at TEXT,
    delivery_error TEXT,
    delivery_attempts INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,

    -- Analysis report (JSON), immutable once set
    report TEXT,
    dominant_emotion TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_due ON records(delivery_state, delivery_at, id);
CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner, created_at);
`

// addTitleColumn adds the title column to databases created before it
// existed. SQLite has no ADD COLUMN IF NOT EXISTS.
func addTitleColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('records') WHERE name = 'title'`).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.Exec(`ALTER TABLE records ADD COLUMN title TEXT`)
	return err
}
