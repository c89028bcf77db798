package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage runs on a single connection, so every transaction is
// serialized. Code inside WithinWorkerTx must only use the tx it is given.
type SQLiteStorage struct {
	sqlEntries
	db     *sql.DB
	logger internal.Logger
}

// NewSQLiteStorage opens path (or ":memory:") with WAL and foreign keys enabled.
func NewSQLiteStorage(path string, logger internal.Logger) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases are
	// per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			logger.Errorf("failed to configure sqlite: %v", err)
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteStorage{sqlEntries: sqlEntries{q: db}, db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	for i, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// sqliteError maps busy and locked databases to ErrTransient and unique
// violations to internal.ErrConflict.
func sqliteError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(se.Error(), "UNIQUE") {
				return fmt.Errorf("%w: %v", internal.ErrConflict, err)
			}
		}
	}
	return err
}

func (s *SQLiteStorage) WithinWorkerTx(ctx context.Context, workerID int64, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", sqliteError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, sqlEntries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return sqliteError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", sqliteError(err))
	}
	return nil
}

// --- WorkerRepository ---
const sqlWorkerColumns = `id, uid, name, role, status, created_at`

func scanSQLWorker(row interface{ Scan(...any) error }) (*internal.Worker, error) {
	var w internal.Worker
	var createdAt string
	if err := row.Scan(&w.ID, &w.UID, &w.Name, &w.Role, &w.Status, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	w.CreatedAt = t
	return &w, nil
}

func (s *SQLiteStorage) GetWorker(ctx context.Context, id int64) (*internal.Worker, error) {
	w, err := scanSQLWorker(s.db.QueryRowContext(ctx, `SELECT `+sqlWorkerColumns+` FROM workers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("worker %d: %w", id, internal.ErrNotFound)
	}
	return w, err
}

func (s *SQLiteStorage) GetWorkerByUID(ctx context.Context, uid string) (*internal.Worker, error) {
	w, err := scanSQLWorker(s.db.QueryRowContext(ctx, `SELECT `+sqlWorkerColumns+` FROM workers WHERE uid = ?`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("worker %q: %w", uid, internal.ErrNotFound)
	}
	return w, err
}

func (s *SQLiteStorage) GetOrCreateWorker(ctx context.Context, tmpl *internal.Worker) (*internal.Worker, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO workers (uid, name, role, status, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (uid) DO NOTHING`,
		tmpl.UID, tmpl.Name, tmpl.Role, tmpl.Status, timeToString(tmpl.CreatedAt))
	if err != nil {
		s.logger.Errorf("failed to provision worker %q: %v", tmpl.UID, err)
		return nil, sqliteError(err)
	}
	return s.GetWorkerByUID(ctx, tmpl.UID)
}

func (s *SQLiteStorage) ListWorkers(ctx context.Context) ([]internal.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlWorkerColumns+` FROM workers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := []internal.Worker{}
	for rows.Next() {
		w, err := scanSQLWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

// --- CategoryRepository ---
const sqlCategoryColumns = `id, name, kind, priority, default_list, created_at, updated_at`

func scanSQLCategory(row interface{ Scan(...any) error }) (*internal.Category, error) {
	var c internal.Category
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Name, &c.Kind, &c.Priority, &c.DefaultList, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStorage) GetCategory(ctx context.Context, id int64) (*internal.Category, error) {
	c, err := scanSQLCategory(s.db.QueryRowContext(ctx, `SELECT `+sqlCategoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, internal.ErrNotFound)
	}
	return c, err
}

func (s *SQLiteStorage) ListCategories(ctx context.Context) ([]internal.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlCategoryColumns+` FROM categories ORDER BY priority, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []internal.Category{}
	for rows.Next() {
		c, err := scanSQLCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *SQLiteStorage) SaveCategory(ctx context.Context, c *internal.Category) error {
	if c.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO categories (name, kind, priority, default_list, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.Name, c.Kind, c.Priority, c.DefaultList, timeToString(c.CreatedAt), timeToString(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting category: %w", err)
		}
		c.ID, err = res.LastInsertId()
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET name = ?, kind = ?, priority = ?, default_list = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Kind, c.Priority, c.DefaultList, timeToString(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("updating category %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", c.ID, internal.ErrNotFound)
	}
	return nil
}

// --- PreferenceRepository ---
type sqlLayout struct {
	Primary   []int64 `json:"primary"`
	Secondary []int64 `json:"secondary"`
	Hidden    []int64 `json:"hidden"`
}

func (s *SQLiteStorage) GetPreference(ctx context.Context, workerID int64) (*internal.WorkerPreference, error) {
	var raw, updatedAt string
	err := s.db.QueryRowContext(ctx, `SELECT layout, updated_at FROM worker_preferences WHERE worker_id = ?`, workerID).
		Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var layout sqlLayout
	if err := json.Unmarshal([]byte(raw), &layout); err != nil {
		return nil, fmt.Errorf("decoding layout for worker %d: %w", workerID, err)
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &internal.WorkerPreference{
		WorkerID:  workerID,
		Primary:   layout.Primary,
		Secondary: layout.Secondary,
		Hidden:    layout.Hidden,
		UpdatedAt: t,
	}, nil
}

func (s *SQLiteStorage) SavePreference(ctx context.Context, p *internal.WorkerPreference) error {
	raw, err := json.Marshal(sqlLayout{
		Primary:   nonNilIDs(p.Primary),
		Secondary: nonNilIDs(p.Secondary),
		Hidden:    nonNilIDs(p.Hidden),
	})
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO worker_preferences (worker_id, layout, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (worker_id) DO UPDATE SET layout = excluded.layout, updated_at = excluded.updated_at`,
		p.WorkerID, string(raw), timeToString(p.UpdatedAt))
	if err != nil {
		s.logger.Errorf("failed to save preference for worker %d: %v", p.WorkerID, err)
		return sqliteError(err)
	}
	return nil
}

// sqlEntries serves entry and daily-status access against the db or a tx.
type sqlEntries struct {
	q sqlQuerier
}

const sqlEntryColumns = `id, worker_id, category_id, category_name, start_time, end_time, duration, is_manual, is_edited, created_at, updated_at`

func scanSQLEntry(row interface{ Scan(...any) error }) (*internal.TimeEntry, error) {
	var (
		e                           internal.TimeEntry
		start, createdAt, updatedAt string
		end                         sql.NullString
		duration                    sql.NullInt64
		isManual, isEdited          int
	)
	if err := row.Scan(&e.ID, &e.WorkerID, &e.CategoryID, &e.CategoryName, &start, &end, &duration,
		&isManual, &isEdited, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if e.StartTime, err = parseTime(start); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if e.EndTime, err = parseNullableTime(end); err != nil {
		return nil, err
	}
	e.Duration = nullableInt64(duration)
	e.IsManual = intToBool(isManual)
	e.IsEdited = intToBool(isEdited)
	return &e, nil
}

func (r sqlEntries) listEntries(ctx context.Context, query string, args ...any) ([]internal.TimeEntry, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteError(err)
	}
	defer rows.Close()

	entries := []internal.TimeEntry{}
	for rows.Next() {
		e, err := scanSQLEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r sqlEntries) GetEntry(ctx context.Context, id int64) (*internal.TimeEntry, error) {
	e, err := scanSQLEntry(r.q.QueryRowContext(ctx, `SELECT `+sqlEntryColumns+` FROM time_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("time entry %d: %w", id, internal.ErrNotFound)
	}
	return e, err
}

func (r sqlEntries) ListEntries(ctx context.Context, workerID int64, from, to time.Time) ([]internal.TimeEntry, error) {
	return r.listEntries(ctx, `SELECT `+sqlEntryColumns+` FROM time_entries
		WHERE worker_id = ? AND start_time >= ? AND start_time < ? ORDER BY start_time, id`,
		workerID, timeToString(from), timeToString(to))
}

func (r sqlEntries) ListOpenEntries(ctx context.Context, workerID int64) ([]internal.TimeEntry, error) {
	return r.listEntries(ctx, `SELECT `+sqlEntryColumns+` FROM time_entries
		WHERE worker_id = ? AND end_time IS NULL ORDER BY start_time, id`, workerID)
}

func (r sqlEntries) InsertEntry(ctx context.Context, e *internal.TimeEntry) error {
	res, err := r.q.ExecContext(ctx, `INSERT INTO time_entries
		(worker_id, category_id, category_name, start_time, end_time, duration, is_manual, is_edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.WorkerID, e.CategoryID, e.CategoryName, timeToString(e.StartTime), nullableTimeToString(e.EndTime),
		nullableInt64ToValue(e.Duration), boolToInt(e.IsManual), boolToInt(e.IsEdited),
		timeToString(e.CreatedAt), timeToString(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", sqliteError(err))
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (r sqlEntries) UpdateEntry(ctx context.Context, e *internal.TimeEntry) error {
	res, err := r.q.ExecContext(ctx, `UPDATE time_entries SET category_id = ?, category_name = ?, start_time = ?, end_time = ?,
		duration = ?, is_manual = ?, is_edited = ?, updated_at = ? WHERE id = ?`,
		e.CategoryID, e.CategoryName, timeToString(e.StartTime), nullableTimeToString(e.EndTime),
		nullableInt64ToValue(e.Duration), boolToInt(e.IsManual), boolToInt(e.IsEdited), timeToString(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("updating time entry %d: %w", e.ID, sqliteError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("time entry %d: %w", e.ID, internal.ErrNotFound)
	}
	return nil
}

func (r sqlEntries) GetDailyStatus(ctx context.Context, workerID int64, day internal.Day) (*internal.DailyStatus, error) {
	st := internal.DailyStatus{WorkerID: workerID, Date: day}
	var hasLeft, isFixed int
	var leftAt, fixedAt sql.NullString
	var updatedAt string
	err := r.q.QueryRowContext(ctx, `SELECT has_left, is_fixed, left_at, fixed_at, updated_at FROM daily_status
		WHERE worker_id = ? AND day = ?`, workerID, day.String()).
		Scan(&hasLeft, &isFixed, &leftAt, &fixedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqliteError(err)
	}
	st.HasLeft = intToBool(hasLeft)
	st.IsFixed = intToBool(isFixed)
	if st.LeftAt, err = parseNullableTime(leftAt); err != nil {
		return nil, err
	}
	if st.FixedAt, err = parseNullableTime(fixedAt); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r sqlEntries) SaveDailyStatus(ctx context.Context, st *internal.DailyStatus) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO daily_status (worker_id, day, has_left, is_fixed, left_at, fixed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (worker_id, day) DO UPDATE SET has_left = excluded.has_left, is_fixed = excluded.is_fixed,
			left_at = excluded.left_at, fixed_at = excluded.fixed_at, updated_at = excluded.updated_at`,
		st.WorkerID, st.Date.String(), boolToInt(st.HasLeft), boolToInt(st.IsFixed),
		nullableTimeToString(st.LeftAt), nullableTimeToString(st.FixedAt), timeToString(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving daily status: %w", sqliteError(err))
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*SQLiteStorage)(nil)
var _ Tx = sqlEntries{}
