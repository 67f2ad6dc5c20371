// Package sqlite provides a SQLite implementation of storage.RecordStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/pkg/types"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = `
	id, owner, content, source, filename, recipient, message, created_at,
	delivery_at, delivery_state, delivered_at, delivery_error, delivery_attempts,
	version, report, title`

// RecordStore implements storage.RecordStore using SQLite.
type RecordStore struct {
	db *sql.DB
}

var (
	_ storage.RecordStore     = (*RecordStore)(nil)
	_ storage.EmotionSearcher = (*RecordStore)(nil)
)

// NewRecordStore creates a new SQLite record store with WAL self-healing.
// If the initial open fails due to stale WAL files left behind by a crashed
// process, it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func NewRecordStore(dsn string) (*RecordStore, error) {
	store, err := openRecordStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openRecordStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

func openRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes, which also makes every compare-and-set atomic.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := addTitleColumn(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Save inserts a new record.
func (s *RecordStore) Save(ctx context.Context, rec *types.Record) error {
	if err := storage.ValidateRecord(rec); err != nil {
		return err
	}

	report, err := storage.EncodeReport(rec.Report)
	if err != nil {
		return err
	}

	if rec.Version == 0 {
		rec.Version = 1
	}

	query := `
		INSERT INTO records (` + recordColumns + `, dominant_emotion)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Owner,
		rec.Content,
		string(rec.Source),
		nullableString(rec.Filename),
		nullableString(rec.Recipient),
		nullableString(rec.Message),
		formatTime(rec.CreatedAt),
		nullableTime(rec.DeliveryAt),
		string(rec.DeliveryState),
		nullableTime(rec.DeliveredAt),
		nullableString(rec.DeliveryError),
		rec.DeliveryAttempts,
		rec.Version,
		nullableBytes(report),
		nullableString(rec.Title),
		nullableString(dominantEmotion(rec.Report)),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: record %s", storage.ErrAlreadyExists, rec.ID)
	}

	return nil
}

// Get retrieves a record by ID.
func (s *RecordStore) Get(ctx context.Context, id string) (*types.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get record: %w", err)
	}
	return rec, nil
}

// QueryDue returns pending records whose delivery date is at or before now.
func (s *RecordStore) QueryDue(ctx context.Context, now time.Time) ([]*types.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE delivery_state = ? AND delivery_at IS NOT NULL AND delivery_at <= ?
		ORDER BY delivery_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(types.DeliveryPending), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query due records: %w", err)
	}
	defer rows.Close()

	var due []*types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan due record: %w", err)
		}
		due = append(due, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate due records: %w", err)
	}
	return due, nil
}

// Update compare-and-sets the delivery fields of rec against expected.
func (s *RecordStore) Update(ctx context.Context, rec *types.Record, expected types.DeliveryState) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}
	if err := storage.ValidateDeliveryFields(rec); err != nil {
		return err
	}
	if err := storage.CheckTransition(expected, rec.DeliveryState); err != nil {
		return err
	}

	report, err := storage.EncodeReport(rec.Report)
	if err != nil {
		return err
	}

	query := `
		UPDATE records SET
			delivery_at = ?,
			delivery_state = ?,
			delivered_at = ?,
			delivery_error = ?,
			delivery_attempts = ?,
			report = COALESCE(report, ?),
			dominant_emotion = COALESCE(dominant_emotion, ?),
			version = version + 1
		WHERE id = ? AND delivery_state = ?
		RETURNING version
	`

	var version int64
	err = s.db.QueryRowContext(ctx, query,
		nullableTime(rec.DeliveryAt),
		string(rec.DeliveryState),
		nullableTime(rec.DeliveredAt),
		nullableString(rec.DeliveryError),
		rec.DeliveryAttempts,
		nullableBytes(report),
		nullableString(dominantEmotion(rec.Report)),
		rec.ID,
		string(expected),
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return s.staleOrMissing(ctx, rec.ID, expected)
	}
	if err != nil {
		return fmt.Errorf("sqlite: failed to update record: %w", err)
	}

	rec.Version = version
	return nil
}

// staleOrMissing explains why a compare-and-set matched no row.
func (s *RecordStore) staleOrMissing(ctx context.Context, id string, expected types.DeliveryState) error {
	var actual string
	err := s.db.QueryRowContext(ctx, `SELECT delivery_state FROM records WHERE id = ?`, id).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: record %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: failed to read delivery state: %w", err)
	}
	return &storage.StaleStateError{ID: id, Expected: expected, Actual: types.DeliveryState(actual)}
}

// List retrieves records with pagination and filtering.
func (s *RecordStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Record], error) {
	// Normalize before ORDER BY construction to keep the sort whitelist in force.
	opts.Normalize()

	var conditions []string
	var args []interface{}

	if opts.Owner != "" {
		conditions = append(conditions, "owner = ?")
		args = append(args, opts.Owner)
	}
	if opts.DeliveryState != "" {
		conditions = append(conditions, "delivery_state = ?")
		args = append(args, string(opts.DeliveryState))
	}
	if !opts.CreatedAfter.IsZero() {
		conditions = append(conditions, "created_at > ?")
		args = append(args, formatTime(opts.CreatedAfter))
	}
	if !opts.CreatedBefore.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, formatTime(opts.CreatedBefore))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count records: %w", err)
	}

	query := "SELECT " + recordColumns + " FROM records" + where +
		fmt.Sprintf(" ORDER BY %s %s, id ASC", opts.SortBy, opts.SortOrder)
	if opts.Limit != storage.NoLimit {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list records: %w", err)
	}
	defer rows.Close()

	items := make([]types.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan record: %w", err)
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate records: %w", err)
	}

	pageSize := opts.Limit
	if pageSize == storage.NoLimit {
		pageSize = len(items)
	}

	return &storage.PaginatedResult[types.Record]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: pageSize,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// SimilarByEmotion ranks the analyzed records of owner by emotional-profile
// distance. SQLite has no vector type, so ranking happens in memory.
func (s *RecordStore) SimilarByEmotion(ctx context.Context, owner string, scores map[string]float64, limit int) ([]*types.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE report IS NOT NULL`
	var args []any
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query analyzed records: %w", err)
	}
	defer rows.Close()

	var analyzed []*types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan record: %w", err)
		}
		analyzed = append(analyzed, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate records: %w", err)
	}

	return storage.RankByEmotion(analyzed, scores, limit), nil
}

// Close flushes the WAL into the main database file and releases resources.
// The TRUNCATE checkpoint removes the -shm and -wal files so that the CLI can
// open the database after the server exits without meeting stale WAL state.
func (s *RecordStore) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("sqlite: WAL checkpoint on close failed (non-fatal): %v", err)
	}

	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*types.Record, error) {
	var rec types.Record
	var source, state, createdAt string
	var filename, recipient, message, deliveryAt, deliveredAt, deliveryError, report, title sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.Owner,
		&rec.Content,
		&source,
		&filename,
		&recipient,
		&message,
		&createdAt,
		&deliveryAt,
		&state,
		&deliveredAt,
		&deliveryError,
		&rec.DeliveryAttempts,
		&rec.Version,
		&report,
		&title,
	)
	if err != nil {
		return nil, err
	}

	rec.Source = types.Source(source)
	rec.DeliveryState = types.DeliveryState(state)
	rec.Filename = filename.String
	rec.Title = title.String
	rec.Recipient = recipient.String
	rec.Message = message.String
	rec.DeliveryError = deliveryError.String

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.DeliveryAt, err = parseNullTime(deliveryAt); err != nil {
		return nil, err
	}
	if rec.DeliveredAt, err = parseNullTime(deliveredAt); err != nil {
		return nil, err
	}
	if report.Valid {
		if rec.Report, err = storage.DecodeReport([]byte(report.String)); err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullableTime converts a time pointer to a nullable fixed-width timestamp.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullableBytes converts a byte slice to sql.NullString.
func nullableBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// nullableString converts a string to sql.NullString.
// An empty string is treated as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func dominantEmotion(r *types.AnalysisReport) string {
	if r == nil {
		return ""
	}
	return r.DominantEmotion
}
