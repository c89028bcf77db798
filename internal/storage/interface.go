package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

// ErrTransient marks a storage failure worth retrying (lock contention, busy database).
var ErrTransient = errors.New("storage: transient failure")

type WorkerRepository interface {
	GetWorker(ctx context.Context, id int64) (*internal.Worker, error)
	GetWorkerByUID(ctx context.Context, uid string) (*internal.Worker, error)
	// GetOrCreateWorker returns the worker for uid, provisioning tmpl when absent.
	GetOrCreateWorker(ctx context.Context, tmpl *internal.Worker) (*internal.Worker, error)
	ListWorkers(ctx context.Context) ([]internal.Worker, error)
}

type CategoryRepository interface {
	GetCategory(ctx context.Context, id int64) (*internal.Category, error)
	// ListCategories returns categories sorted by priority, then id.
	ListCategories(ctx context.Context) ([]internal.Category, error)
	// SaveCategory inserts when ID is zero, updates otherwise.
	SaveCategory(ctx context.Context, c *internal.Category) error
}

type PreferenceRepository interface {
	// GetPreference returns nil, nil when the worker never saved a layout.
	GetPreference(ctx context.Context, workerID int64) (*internal.WorkerPreference, error)
	SavePreference(ctx context.Context, p *internal.WorkerPreference) error
}

type EntryReader interface {
	GetEntry(ctx context.Context, id int64) (*internal.TimeEntry, error)
	// ListEntries returns entries with from <= start_time < to, ascending by start then id.
	ListEntries(ctx context.Context, workerID int64, from, to time.Time) ([]internal.TimeEntry, error)
	// ListOpenEntries returns entries with no end time, ascending by start then id.
	ListOpenEntries(ctx context.Context, workerID int64) ([]internal.TimeEntry, error)
}

type EntryWriter interface {
	// InsertEntry assigns e.ID.
	InsertEntry(ctx context.Context, e *internal.TimeEntry) error
	UpdateEntry(ctx context.Context, e *internal.TimeEntry) error
}

type DailyStatusRepository interface {
	// GetDailyStatus returns nil, nil when no record exists for the day.
	GetDailyStatus(ctx context.Context, workerID int64, day internal.Day) (*internal.DailyStatus, error)
	SaveDailyStatus(ctx context.Context, s *internal.DailyStatus) error
}

// Tx is the view of the store inside a unit of work.
type Tx interface {
	EntryReader
	EntryWriter
	DailyStatusRepository
}

type Store interface {
	WorkerRepository
	CategoryRepository
	PreferenceRepository
	EntryReader
	DailyStatusRepository

	// WithinWorkerTx runs fn atomically. Units of work for the same worker are
	// serialized; a returned error discards every write made through tx.
	WithinWorkerTx(ctx context.Context, workerID int64, fn func(ctx context.Context, tx Tx) error) error
	Migrate(ctx context.Context) error
	Close() error
}
