// Package postgres provides a PostgreSQL implementation of storage.RecordStore.
package postgres

// Schema contains the SQL statements to create the records table.
// All statements are idempotent.
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
    created_at TIMESTAMPTZ NOT NULL,

    -- Delivery state machine
    delivery_at TIMESTAMPTZ,
    delivery_state TEXT NOT NULL DEFAULT 'unscheduled'
        CHECK (delivery_state IN ('unscheduled', 'pending', 'delivered', 'failed')),
    delivered_at TIMESTAMPTZ,
    delivery_error TEXT,
    delivery_attempts INTEGER NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 1,

    -- Analysis report, immutable once set
    report JSONB,
    dominant_emotion TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_due ON records(delivery_state, delivery_at, id);
CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner, created_at);

ALTER TABLE records ADD COLUMN IF NOT EXISTS title TEXT;
`

// MigrationPgvector adds the emotion profile vector column.
// It is only applied when the vector extension is available.
const MigrationPgvector = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'records' AND column_name = 'emotion_vec'
    ) THEN
        ALTER TABLE records ADD COLUMN emotion_vec vector;
    END IF;
END
$$;
`
