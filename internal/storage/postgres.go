package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStorage struct {
	pgEntries
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}
	return &PostgresStorage{pgEntries: pgEntries{q: pool}, pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Migrate(ctx context.Context) error {
	for i, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// pgError maps lock and serialization failures to ErrTransient and unique
// violations to internal.ErrConflict.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrTransient, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", internal.ErrConflict, pgErr.Message)
		}
	}
	return err
}

// WithinWorkerTx takes a transaction-scoped advisory lock on the worker id so
// units of work for one worker queue behind each other.
func (p *PostgresStorage) WithinWorkerTx(ctx context.Context, workerID int64, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", pgError(err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, workerID); err != nil {
		return fmt.Errorf("locking worker %d: %w", workerID, pgError(err))
	}
	if err := fn(ctx, pgEntries{q: tx}); err != nil {
		return pgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", pgError(err))
	}
	return nil
}

// --- WorkerRepository ---
const pgWorkerColumns = `id, uid, name, role, status, created_at`

func scanPgWorker(row pgx.Row) (*internal.Worker, error) {
	var w internal.Worker
	if err := row.Scan(&w.ID, &w.UID, &w.Name, &w.Role, &w.Status, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (p *PostgresStorage) GetWorker(ctx context.Context, id int64) (*internal.Worker, error) {
	w, err := scanPgWorker(p.pool.QueryRow(ctx, `SELECT `+pgWorkerColumns+` FROM workers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("worker %d: %w", id, internal.ErrNotFound)
	}
	return w, err
}

func (p *PostgresStorage) GetWorkerByUID(ctx context.Context, uid string) (*internal.Worker, error) {
	w, err := scanPgWorker(p.pool.QueryRow(ctx, `SELECT `+pgWorkerColumns+` FROM workers WHERE uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("worker %q: %w", uid, internal.ErrNotFound)
	}
	return w, err
}

// GetOrCreateWorker relies on the uid unique constraint: a concurrent insert
// loses silently and the winner's row is read back.
func (p *PostgresStorage) GetOrCreateWorker(ctx context.Context, tmpl *internal.Worker) (*internal.Worker, error) {
	_, err := p.pool.Exec(ctx, `INSERT INTO workers (uid, name, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (uid) DO NOTHING`,
		tmpl.UID, tmpl.Name, tmpl.Role, tmpl.Status, tmpl.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to provision worker %q: %v", tmpl.UID, err)
		return nil, err
	}
	return p.GetWorkerByUID(ctx, tmpl.UID)
}

func (p *PostgresStorage) ListWorkers(ctx context.Context) ([]internal.Worker, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+pgWorkerColumns+` FROM workers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := []internal.Worker{}
	for rows.Next() {
		w, err := scanPgWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

// --- CategoryRepository ---
const pgCategoryColumns = `id, name, kind, priority, default_list, created_at, updated_at`

func scanPgCategory(row pgx.Row) (*internal.Category, error) {
	var c internal.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Kind, &c.Priority, &c.DefaultList, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *PostgresStorage) GetCategory(ctx context.Context, id int64) (*internal.Category, error) {
	c, err := scanPgCategory(p.pool.QueryRow(ctx, `SELECT `+pgCategoryColumns+` FROM categories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, internal.ErrNotFound)
	}
	return c, err
}

func (p *PostgresStorage) ListCategories(ctx context.Context) ([]internal.Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+pgCategoryColumns+` FROM categories ORDER BY priority, id`)
	if err != nil {
		p.logger.Errorf("failed to query categories: %v", err)
		return nil, err
	}
	defer rows.Close()

	categories := []internal.Category{}
	for rows.Next() {
		c, err := scanPgCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (p *PostgresStorage) SaveCategory(ctx context.Context, c *internal.Category) error {
	if c.ID == 0 {
		return p.pool.QueryRow(ctx, `INSERT INTO categories (name, kind, priority, default_list, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			c.Name, c.Kind, c.Priority, c.DefaultList, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	}
	tag, err := p.pool.Exec(ctx, `UPDATE categories SET name = $2, kind = $3, priority = $4, default_list = $5, updated_at = $6 WHERE id = $1`,
		c.ID, c.Name, c.Kind, c.Priority, c.DefaultList, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", c.ID, internal.ErrNotFound)
	}
	return nil
}

// --- PreferenceRepository ---
func (p *PostgresStorage) GetPreference(ctx context.Context, workerID int64) (*internal.WorkerPreference, error) {
	pref := internal.WorkerPreference{WorkerID: workerID}
	err := p.pool.QueryRow(ctx, `SELECT primary_ids, secondary_ids, hidden_ids, updated_at FROM worker_preferences WHERE worker_id = $1`, workerID).
		Scan(&pref.Primary, &pref.Secondary, &pref.Hidden, &pref.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (p *PostgresStorage) SavePreference(ctx context.Context, pref *internal.WorkerPreference) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO worker_preferences (worker_id, primary_ids, secondary_ids, hidden_ids, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (worker_id) DO UPDATE SET primary_ids = EXCLUDED.primary_ids, secondary_ids = EXCLUDED.secondary_ids,
			hidden_ids = EXCLUDED.hidden_ids, updated_at = EXCLUDED.updated_at`,
		pref.WorkerID, nonNilIDs(pref.Primary), nonNilIDs(pref.Secondary), nonNilIDs(pref.Hidden), pref.UpdatedAt)
	if err != nil {
		p.logger.Errorf("failed to save preference for worker %d: %v", pref.WorkerID, err)
	}
	return err
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// pgEntries serves entry and daily-status access against the pool or a tx.
type pgEntries struct {
	q pgQuerier
}

const pgEntryColumns = `id, worker_id, category_id, category_name, start_time, end_time, duration, is_manual, is_edited, created_at, updated_at`

func scanPgEntry(row pgx.Row) (*internal.TimeEntry, error) {
	var e internal.TimeEntry
	if err := row.Scan(&e.ID, &e.WorkerID, &e.CategoryID, &e.CategoryName, &e.StartTime, &e.EndTime,
		&e.Duration, &e.IsManual, &e.IsEdited, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r pgEntries) listEntries(ctx context.Context, query string, args ...any) ([]internal.TimeEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, pgError(err)
	}
	defer rows.Close()

	entries := []internal.TimeEntry{}
	for rows.Next() {
		e, err := scanPgEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r pgEntries) GetEntry(ctx context.Context, id int64) (*internal.TimeEntry, error) {
	e, err := scanPgEntry(r.q.QueryRow(ctx, `SELECT `+pgEntryColumns+` FROM time_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("time entry %d: %w", id, internal.ErrNotFound)
	}
	return e, err
}

func (r pgEntries) ListEntries(ctx context.Context, workerID int64, from, to time.Time) ([]internal.TimeEntry, error) {
	return r.listEntries(ctx, `SELECT `+pgEntryColumns+` FROM time_entries
		WHERE worker_id = $1 AND start_time >= $2 AND start_time < $3 ORDER BY start_time, id`, workerID, from, to)
}

func (r pgEntries) ListOpenEntries(ctx context.Context, workerID int64) ([]internal.TimeEntry, error) {
	return r.listEntries(ctx, `SELECT `+pgEntryColumns+` FROM time_entries
		WHERE worker_id = $1 AND end_time IS NULL ORDER BY start_time, id`, workerID)
}

func (r pgEntries) InsertEntry(ctx context.Context, e *internal.TimeEntry) error {
	err := r.q.QueryRow(ctx, `INSERT INTO time_entries
		(worker_id, category_id, category_name, start_time, end_time, duration, is_manual, is_edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		e.WorkerID, e.CategoryID, e.CategoryName, e.StartTime, e.EndTime, e.Duration, e.IsManual, e.IsEdited, e.CreatedAt, e.UpdatedAt).
		Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", pgError(err))
	}
	return nil
}

func (r pgEntries) UpdateEntry(ctx context.Context, e *internal.TimeEntry) error {
	tag, err := r.q.Exec(ctx, `UPDATE time_entries SET category_id = $2, category_name = $3, start_time = $4, end_time = $5,
		duration = $6, is_manual = $7, is_edited = $8, updated_at = $9 WHERE id = $1`,
		e.ID, e.CategoryID, e.CategoryName, e.StartTime, e.EndTime, e.Duration, e.IsManual, e.IsEdited, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating time entry %d: %w", e.ID, pgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("time entry %d: %w", e.ID, internal.ErrNotFound)
	}
	return nil
}

func (r pgEntries) GetDailyStatus(ctx context.Context, workerID int64, day internal.Day) (*internal.DailyStatus, error) {
	st := internal.DailyStatus{WorkerID: workerID, Date: day}
	err := r.q.QueryRow(ctx, `SELECT has_left, is_fixed, left_at, fixed_at, updated_at FROM daily_status
		WHERE worker_id = $1 AND day = $2`, workerID, day.Start(time.UTC)).
		Scan(&st.HasLeft, &st.IsFixed, &st.LeftAt, &st.FixedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgError(err)
	}
	return &st, nil
}

func (r pgEntries) SaveDailyStatus(ctx context.Context, st *internal.DailyStatus) error {
	_, err := r.q.Exec(ctx, `INSERT INTO daily_status (worker_id, day, has_left, is_fixed, left_at, fixed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (worker_id, day) DO UPDATE SET has_left = EXCLUDED.has_left, is_fixed = EXCLUDED.is_fixed,
			left_at = EXCLUDED.left_at, fixed_at = EXCLUDED.fixed_at, updated_at = EXCLUDED.updated_at`,
		st.WorkerID, st.Date.Start(time.UTC), st.HasLeft, st.IsFixed, st.LeftAt, st.FixedAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving daily status: %w", pgError(err))
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*PostgresStorage)(nil)
var _ Tx = pgEntries{}
