package errors

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrRecordNotFound is returned when no stored record has the given ID
	ErrRecordNotFound = stderrors.New("error record not found")

	// ErrStoreClosed is returned by operations on a closed store
	ErrStoreClosed = stderrors.New("error store closed")
)

// ErrorStore persists error records to SQLite
type ErrorStore struct {
	db            *sql.DB
	path          string
	mu            sync.RWMutex
	closed        bool
	retentionDays int
}

// StoreConfig configures the error store
type StoreConfig struct {
	Path          string // Path to SQLite database file
	RetentionDays int    // Days to keep records (0 = default 30)
}

// DefaultStorePath is used when StoreConfig.Path is empty
const DefaultStorePath = "/var/lib/pitchscope/errors.db"

// DefaultStoreConfig returns default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Path:          DefaultStorePath,
		RetentionDays: 30,
	}
}

// NewErrorStore opens (creating if needed) the store at cfg.Path
func NewErrorStore(cfg StoreConfig) (*ErrorStore, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultStorePath
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &ErrorStore{
		db:            db,
		path:          cfg.Path,
		retentionDays: cfg.RetentionDays,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates or updates the database schema
func (s *ErrorStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS error_records (
			id            TEXT PRIMARY KEY,
			seq           INTEGER NOT NULL,
			origin        TEXT NOT NULL,
			error_name    TEXT NOT NULL,
			error_message TEXT NOT NULL,
			message       TEXT NOT NULL,
			context_json  TEXT NOT NULL,
			captured_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_error_records_origin ON error_records(origin);
		CREATE INDEX IF NOT EXISTS idx_error_records_captured_at ON error_records(captured_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save persists a record. Saving the same ID twice replaces the row.
func (s *ErrorStore) Save(ctx context.Context, rec ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO error_records
			(id, seq, origin, error_name, error_message, message, context_json, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		int64(rec.Seq),
		string(rec.Context.From),
		rec.ErrorName,
		rec.ErrorMessage,
		rec.Message,
		string(contextJSON),
		rec.CapturedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// RecordQuery defines parameters for querying records
type RecordQuery struct {
	ID        string    // Exact record ID
	Origin    Origin    // Filter by capture path
	Since     time.Time // Only records captured at or after this time
	Until     time.Time // Only records captured at or before this time
	Limit     int       // Max results (default 20, max 1000)
	Offset    int       // Pagination offset
	OrderDesc bool      // Newest first
}

// Query retrieves records matching q. Returned records carry a NamedError
// rebuilt from the stored name and message in place of the original fault.
func (s *ErrorStore) Query(ctx context.Context, q RecordQuery) ([]ErrorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}

	query := "SELECT id, seq, error_name, error_message, message, context_json, captured_at FROM error_records WHERE 1=1"
	args := []interface{}{}

	if q.ID != "" {
		query += " AND id = ?"
		args = append(args, q.ID)
	}
	if q.Origin != "" {
		query += " AND origin = ?"
		args = append(args, string(q.Origin))
	}
	if !q.Since.IsZero() {
		query += " AND captured_at >= ?"
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		query += " AND captured_at <= ?"
		args = append(args, q.Until.UnixNano())
	}

	orderDir := "ASC"
	if q.OrderDesc {
		orderDir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY captured_at %s, seq %s LIMIT ? OFFSET ?", orderDir, orderDir)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []ErrorRecord
	for rows.Next() {
		var rec ErrorRecord
		var seq, capturedAt int64
		var contextJSON string

		if err := rows.Scan(
			&rec.ID,
			&seq,
			&rec.ErrorName,
			&rec.ErrorMessage,
			&rec.Message,
			&contextJSON,
			&capturedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		if err := json.Unmarshal([]byte(contextJSON), &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context of %s: %w", rec.ID, err)
		}
		rec.Seq = uint64(seq)
		rec.CapturedAt = time.Unix(0, capturedAt)
		rec.Err = &NamedError{Name: rec.ErrorName, Message: rec.ErrorMessage, Stack: rec.Context.Stack}

		results = append(results, rec)
	}

	return results, rows.Err()
}

// Get retrieves a single record by ID
func (s *ErrorStore) Get(ctx context.Context, id string) (*ErrorRecord, error) {
	results, err := s.Query(ctx, RecordQuery{ID: id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return &results[0], nil
}

// Delete removes a record permanently
func (s *ErrorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM error_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Purge removes every stored record and returns how many were removed
func (s *ErrorStore) Purge(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM error_records")
	if err != nil {
		return 0, fmt.Errorf("purge failed: %w", err)
	}
	return result.RowsAffected()
}

// Cleanup removes records older than the retention period
func (s *ErrorStore) Cleanup(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM error_records WHERE captured_at < ?",
		cutoff.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}

	return result.RowsAffected()
}

// StoreStats holds statistics about the error store
type StoreStats struct {
	TotalRecords int            `json:"total_records"`
	ByOrigin     map[Origin]int `json:"by_origin"`
	ByErrorName  map[string]int `json:"by_error_name"`
	Oldest       *time.Time     `json:"oldest,omitempty"`
	Newest       *time.Time     `json:"newest,omitempty"`
}

// Stats returns statistics about stored records
func (s *ErrorStore) Stats(ctx context.Context) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		ByOrigin:    make(map[Origin]int),
		ByErrorName: make(map[string]int),
	}
	if s.closed {
		return stats, ErrStoreClosed
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(captured_at), MAX(captured_at) FROM error_records",
	).Scan(&stats.TotalRecords, &oldest, &newest)
	if err != nil {
		return stats, err
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64)
		stats.Oldest = &t
	}
	if newest.Valid {
		t := time.Unix(0, newest.Int64)
		stats.Newest = &t
	}

	if err := s.countBy(ctx, "origin", func(key string, n int) { stats.ByOrigin[Origin(key)] = n }); err != nil {
		return stats, err
	}
	if err := s.countBy(ctx, "error_name", func(key string, n int) { stats.ByErrorName[key] = n }); err != nil {
		return stats, err
	}

	return stats, nil
}

func (s *ErrorStore) countBy(ctx context.Context, column string, add func(string, int)) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, COUNT(*) FROM error_records GROUP BY %s", column, column),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		add(key, count)
	}
	return rows.Err()
}

// Close closes the database connection
func (s *ErrorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the database file path
func (s *ErrorStore) Path() string {
	return s.path
}

// RetentionDays returns the configured retention period in days
func (s *ErrorStore) RetentionDays() int {
	return s.retentionDays
}
