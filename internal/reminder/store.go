package reminder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable record of reminders. Every implementation must apply
// ConditionalUpdate atomically and exclude soft-deleted records from reads.
type Store interface {
	// Insert stores a new record. It fails with ErrDuplicate when the id or
	// a non-empty OriginKey already exists.
	Insert(ctx context.Context, r *Reminder) error

	// Get returns a live record or ErrNotFound.
	Get(ctx context.Context, id string) (*Reminder, error)

	// ConditionalUpdate replaces the mutable fields of id with next, only if
	// the stored status and version equal expect. It fails with
	// ErrPreconditionFailed or ErrNotFound.
	ConditionalUpdate(ctx context.Context, id string, expect Expect, next *Reminder) (*Reminder, error)

	// SoftDelete marks the record deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// Query returns live records matching f ordered by fire time.
	Query(ctx context.Context, f Filter) ([]Reminder, error)

	// FindByOrigin returns the successor synthesized under originKey,
	// including a soft-deleted one.
	FindByOrigin(ctx context.Context, originKey string) (*Reminder, error)

	Close() error
}

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const reminderColumns = `id, created_by, assigned_to, title, message, fire_at, is_recurring,
	recurrence_pattern, priority, action_required, action_url, data, status,
	triggered_at, completed_at, acknowledged_at, created_at, updated_at, deleted_at,
	version, origin_id, origin_key`

// SQLiteStore provides SQLite-backed storage for reminders.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and
// migrates the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers so conditional updates never
	// see SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, r *Reminder) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedBy, r.AssignedTo, r.Title, r.Message, formatTime(r.FireAt), r.IsRecurring,
		r.RecurrencePattern, string(r.Priority), r.ActionRequired, nullString(r.ActionURL), nullData(r.Data),
		string(r.Status), nullTime(r.TriggeredAt), nullTime(r.CompletedAt), nullTime(r.AcknowledgedAt),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt), nullTime(r.DeletedAt),
		r.Version, r.OriginID, emptyToNull(r.OriginKey))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
		}
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+`
		FROM reminders WHERE id = ? AND deleted_at IS NULL`, id)

	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ConditionalUpdate(ctx context.Context, id string, expect Expect, next *Reminder) (*Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("conditional update: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE reminders SET
			assigned_to = ?, title = ?, message = ?, fire_at = ?, is_recurring = ?,
			recurrence_pattern = ?, priority = ?, action_required = ?, action_url = ?, data = ?,
			status = ?, triggered_at = ?, completed_at = ?, acknowledged_at = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND status = ? AND version = ? AND deleted_at IS NULL`,
		next.AssignedTo, next.Title, next.Message, formatTime(next.FireAt), next.IsRecurring,
		next.RecurrencePattern, string(next.Priority), next.ActionRequired, nullString(next.ActionURL), nullData(next.Data),
		string(next.Status), nullTime(next.TriggeredAt), nullTime(next.CompletedAt), nullTime(next.AcknowledgedAt),
		formatTime(next.UpdatedAt),
		id, string(expect.Status), expect.Version)
	if err != nil {
		return nil, fmt.Errorf("conditional update: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("conditional update: rows affected: %w", err)
	}

	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reminders WHERE id = ? AND deleted_at IS NULL`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("conditional update: read current status: %w", err)
		}
		return nil, fmt.Errorf("%w: %s expected %s/v%d, found %s", ErrPreconditionFailed, id, expect.Status, expect.Version, status)
	}

	updated, err := scanReminder(tx.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("conditional update: reload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("conditional update: commit: %w", err)
	}
	return updated, nil
}

func (s *SQLiteStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET deleted_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND deleted_at IS NULL`, formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]Reminder, error) {
	// Build WHERE clause dynamically
	clauses := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, f.CreatedBy)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.IsRecurring != nil {
		clauses = append(clauses, "is_recurring = ?")
		args = append(args, *f.IsRecurring)
	}
	if f.FireAtFrom != nil {
		clauses = append(clauses, "fire_at >= ?")
		args = append(args, formatTime(*f.FireAtFrom))
	}
	if f.FireAtTo != nil {
		clauses = append(clauses, "fire_at <= ?")
		args = append(args, formatTime(*f.FireAtTo))
	}

	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY fire_at ASC, id ASC`

	switch {
	case f.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	case f.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (s *SQLiteStore) FindByOrigin(ctx context.Context, originKey string) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+`
		FROM reminders WHERE origin_key = ?`, originKey)

	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: origin %s", ErrNotFound, originKey)
		}
		return nil, fmt.Errorf("failed to find successor: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanReminders reads multiple rows into a slice of Reminder.
func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var reminders []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// scanReminder reads a single row into a Reminder.
func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		r                               Reminder
		priority, status                string
		fireAt, createdAt, updatedAt    string
		actionURL, data, originKey      sql.NullString
		triggeredAt, completedAt, ackAt sql.NullString
		deletedAt                       sql.NullString
	)

	if err := row.Scan(&r.ID, &r.CreatedBy, &r.AssignedTo, &r.Title, &r.Message, &fireAt, &r.IsRecurring,
		&r.RecurrencePattern, &priority, &r.ActionRequired, &actionURL, &data, &status,
		&triggeredAt, &completedAt, &ackAt, &createdAt, &updatedAt, &deletedAt,
		&r.Version, &r.OriginID, &originKey); err != nil {
		return nil, err
	}

	r.Priority = Priority(priority)
	r.Status = Status(status)
	r.FireAt = parseTime(fireAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.TriggeredAt = parseNullTime(triggeredAt)
	r.CompletedAt = parseNullTime(completedAt)
	r.AcknowledgedAt = parseNullTime(ackAt)
	r.DeletedAt = parseNullTime(deletedAt)
	if actionURL.Valid {
		v := actionURL.String
		r.ActionURL = &v
	}
	if data.Valid {
		r.Data = json.RawMessage(data.String)
	}
	r.OriginKey = originKey.String

	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullData(d json.RawMessage) interface{} {
	if len(d) == 0 {
		return nil
	}
	return string(d)
}

func emptyToNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
