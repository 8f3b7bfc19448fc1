// Package store persists audit logs and purification records in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// Registers the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	dataset_id TEXT,
	model_id TEXT,
	detection_method TEXT NOT NULL,
	action TEXT NOT NULL,
	threat_score REAL NOT NULL DEFAULT 0,
	threat_grade TEXT NOT NULL DEFAULT 'A',
	mitigation_applied INTEGER NOT NULL DEFAULT 0,
	details TEXT NOT NULL DEFAULT '{}',
	timestamp DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS purification_results (
	id TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL,
	dataset_id TEXT NOT NULL,
	clean_dataset_path TEXT NOT NULL,
	poisoned_samples_removed INTEGER NOT NULL DEFAULT 0,
	accuracy_before REAL NOT NULL DEFAULT 0,
	accuracy_after REAL NOT NULL DEFAULT 0,
	data_integrity_score REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs (timestamp DESC);
`

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID                string    `db:"id" json:"id"`
	DatasetID         string    `db:"dataset_id" json:"dataset_id"`
	ModelID           string    `db:"model_id" json:"model_id,omitempty"`
	DetectionMethod   string    `db:"detection_method" json:"detection_method"`
	Action            string    `db:"action" json:"action"`
	ThreatScore       float64   `db:"threat_score" json:"threat_score"`
	ThreatGrade       string    `db:"threat_grade" json:"threat_grade"`
	MitigationApplied bool      `db:"mitigation_applied" json:"mitigation_applied"`
	Details           string    `db:"details" json:"-"`
	Timestamp         time.Time `db:"timestamp" json:"timestamp"`
}

// DetailsMap decodes the JSON details column.
func (e AuditEntry) DetailsMap() map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal([]byte(e.Details), &out)
	return out
}

// PurificationRecord is one persisted purification outcome.
type PurificationRecord struct {
	ID             string    `db:"id" json:"id"`
	AnalysisID     string    `db:"analysis_id" json:"analysis_id"`
	DatasetID      string    `db:"dataset_id" json:"dataset_id"`
	CleanPath      string    `db:"clean_dataset_path" json:"clean_dataset_path"`
	Removed        int       `db:"poisoned_samples_removed" json:"poisoned_samples_removed"`
	AccuracyBefore float64   `db:"accuracy_before" json:"accuracy_before"`
	AccuracyAfter  float64   `db:"accuracy_after" json:"accuracy_after"`
	IntegrityScore float64   `db:"data_integrity_score" json:"data_integrity_score"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids lock
	// contention errors under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// InsertAudit writes one audit log entry.
func (s *Store) InsertAudit(ctx context.Context, e AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Details == "" {
		e.Details = "{}"
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs
			(id, dataset_id, model_id, detection_method, action,
			 threat_score, threat_grade, mitigation_applied, details, timestamp)
		VALUES
			(:id, :dataset_id, :model_id, :detection_method, :action,
			 :threat_score, :threat_grade, :mitigation_applied, :details, :timestamp)`,
		e)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit entries up to limit.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []AuditEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM audit_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// InsertPurification writes one purification record.
func (s *Store) InsertPurification(ctx context.Context, r PurificationRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO purification_results
			(id, analysis_id, dataset_id, clean_dataset_path,
			 poisoned_samples_removed, accuracy_before, accuracy_after,
			 data_integrity_score, created_at)
		VALUES
			(:id, :analysis_id, :dataset_id, :clean_dataset_path,
			 :poisoned_samples_removed, :accuracy_before, :accuracy_after,
			 :data_integrity_score, :created_at)`,
		r)
	if err != nil {
		return fmt.Errorf("insert purification record: %w", err)
	}
	return nil
}

// GetPurification fetches a purification record by id.
func (s *Store) GetPurification(ctx context.Context, id string) (PurificationRecord, error) {
	var r PurificationRecord
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM purification_results WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return PurificationRecord{}, ErrNotFound
	}
	if err != nil {
		return PurificationRecord{}, fmt.Errorf("get purification record: %w", err)
	}
	return r, nil
}
