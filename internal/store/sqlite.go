package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/emfcontracting/fieldsync/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateWorkOrder inserts a new work-order record. The UNIQUE
// constraint on wo_number is the true dedup arbiter: in-process checks
// are only an optimization, so a constraint violation maps to
// DuplicateError rather than a generic failure.
func (s *SQLiteStore) CreateWorkOrder(
	ctx context.Context,
	wo model.WorkOrder,
) (string, error) {
	if wo.ID == "" {
		wo.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if wo.CreatedAt.IsZero() {
		wo.CreatedAt = now
	}
	if wo.UpdatedAt.IsZero() {
		wo.UpdatedAt = now
	}
	if wo.Status == "" {
		wo.Status = model.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_orders (
			id, wo_number, building, address, city, state,
			priority, date_entered, date_inferred,
			description, requestor, requestor_phone,
			nte, preventive, status, status_updated_at, comments,
			created_at, updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?
		)`,
		wo.ID, wo.Number, wo.Building, wo.Address, wo.City, wo.State,
		string(wo.Priority), wo.DateEntered.UTC(), boolToInt(wo.DateInferred),
		wo.Description, wo.RequestorName, wo.RequestorPhone,
		wo.NTE, boolToInt(wo.PreventiveMaintenance),
		string(wo.Status), nullableTime(wo.StatusUpdatedAt), wo.Comments,
		wo.CreatedAt.UTC(), wo.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", &DuplicateError{Number: wo.Number}
		}
		return "", fmt.Errorf("creating work order %s: %w", wo.Number, err)
	}

	return wo.ID, nil
}

// FindByNumber retrieves a single work order by its client-assigned number.
func (s *SQLiteStore) FindByNumber(
	ctx context.Context,
	number string,
) (*model.WorkOrder, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM work_orders WHERE wo_number = ?", number,
	)

	wo, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding work order %s: %w", number, err)
	}

	return &wo, nil
}

// UpdateStatus transitions a work order's lifecycle status.
func (s *SQLiteStore) UpdateStatus(
	ctx context.Context,
	number string,
	status model.LifecycleStatus,
) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_orders
		SET status = ?, status_updated_at = ?, updated_at = ?
		WHERE wo_number = ?`,
		string(status), now, now, number,
	)
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", number, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking status update of %s: %w", number, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendComment adds an entry to the record's audit trail, separated by
// a blank line from what is already there.
func (s *SQLiteStore) AppendComment(
	ctx context.Context,
	number, comment string,
) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_orders
		SET comments = CASE
			WHEN comments = '' THEN ?
			ELSE comments || char(10) || char(10) || ?
		END,
		updated_at = ?
		WHERE wo_number = ?`,
		comment, comment, now, number,
	)
	if err != nil {
		return fmt.Errorf("appending comment to %s: %w", number, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking comment append to %s: %w", number, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateNTE replaces the not-to-exceed ceiling.
func (s *SQLiteStore) UpdateNTE(
	ctx context.Context,
	number string,
	nte float64,
) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_orders SET nte = ?, updated_at = ? WHERE wo_number = ?`,
		nte, time.Now().UTC(), number,
	)
	if err != nil {
		return fmt.Errorf("updating NTE of %s: %w", number, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking NTE update of %s: %w", number, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// LogImportRun persists one pass summary.
func (s *SQLiteStore) LogImportRun(
	ctx context.Context,
	run model.ImportRun,
) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (
			id, kind, success, message,
			fetched, parsed, created, duplicates, skipped, errors,
			started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, boolToInt(run.Success), run.Message,
		run.Fetched, run.Parsed, run.Created, run.Duplicates,
		run.Skipped, run.Errors,
		run.StartedAt.UTC(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("logging import run: %w", err)
	}

	return nil
}

// RecentImportRuns retrieves the latest pass summaries, newest first.
func (s *SQLiteStore) RecentImportRuns(
	ctx context.Context,
	limit int,
) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM import_runs ORDER BY started_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// rowScanner covers both sqlx.Row and sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanWorkOrder scans a work-order row.
func scanWorkOrder(row rowScanner) (model.WorkOrder, error) {
	var (
		wo              model.WorkOrder
		priority        string
		status          string
		dateInferred    int
		preventive      int
		statusUpdatedAt sql.NullTime
		dateEntered     time.Time
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(
		&wo.ID, &wo.Number, &wo.Building, &wo.Address, &wo.City, &wo.State,
		&priority, &dateEntered, &dateInferred,
		&wo.Description, &wo.RequestorName, &wo.RequestorPhone,
		&wo.NTE, &preventive, &status, &statusUpdatedAt, &wo.Comments,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.WorkOrder{}, err
	}

	wo.Priority = model.Priority(priority)
	wo.Status = model.LifecycleStatus(status)
	wo.DateInferred = dateInferred != 0
	wo.PreventiveMaintenance = preventive != 0
	wo.DateEntered = dateEntered
	if statusUpdatedAt.Valid {
		wo.StatusUpdatedAt = statusUpdatedAt.Time
	}
	wo.CreatedAt = createdAt
	wo.UpdatedAt = updatedAt

	return wo, nil
}

// scanImportRun scans an import-run row.
func scanImportRun(rows *sqlx.Rows) (model.ImportRun, error) {
	var (
		run        model.ImportRun
		success    int
		startedAt  time.Time
		durationMS int64
	)

	err := rows.Scan(
		&run.ID, &run.Kind, &success, &run.Message,
		&run.Fetched, &run.Parsed, &run.Created, &run.Duplicates,
		&run.Skipped, &run.Errors,
		&startedAt, &durationMS,
	)
	if err != nil {
		return model.ImportRun{}, fmt.Errorf("scanning import run row: %w", err)
	}

	run.Success = success != 0
	run.StartedAt = startedAt
	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite exposes these only through the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableTime maps a zero time to NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
