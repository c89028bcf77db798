package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

type Rejection string

// RejectSameCategory signals a switch to the category that is already running.
const RejectSameCategory Rejection = "same_category"

type SwitchResult struct {
	Entry     *internal.TimeEntry `json:"entry"`
	Closed    *internal.TimeEntry `json:"closed,omitempty"`
	Rejection Rejection           `json:"rejection,omitempty"`
}

type SwitchRequest struct {
	CategoryID int64 `json:"category_id" validate:"required,gt=0"`
}

type ManualEntryRequest struct {
	CategoryID int64     `json:"category_id" validate:"required,gt=0"`
	StartTime  time.Time `json:"start_time" validate:"required"`
}

// EditRequest carries the fields to change; nil means unchanged.
type EditRequest struct {
	CategoryID *int64     `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

func ValidateSwitchRequest(req *SwitchRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrValidation, err)
	}
	return nil
}

func ValidateManualEntryRequest(req *ManualEntryRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrValidation, err)
	}
	if req.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", internal.ErrValidation)
	}
	return nil
}

func ValidateEditRequest(req *EditRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrValidation, err)
	}
	if req.CategoryID == nil && req.StartTime == nil && req.EndTime == nil {
		return fmt.Errorf("%w: nothing to change", internal.ErrValidation)
	}
	return nil
}

// Actor is the already-resolved caller of an operation.
type Actor struct {
	WorkerID int64
	Role     internal.Role
}

func (a Actor) IsAdmin() bool { return a.Role == internal.RoleAdmin }

// SessionManager owns the open/close lifecycle of time entries. Every
// mutation runs inside a per-worker unit of work, which keeps at most one
// entry open per worker.
type SessionManager struct {
	base
}

func NewSessionManager(store storage.Store, opts ...Option) *SessionManager {
	return &SessionManager{base: newBase(store, opts...)}
}

// openEntry returns the worker's open entry, repairing duplicates by keeping
// the earliest-opened one and closing the rest at now.
func (m *SessionManager) openEntry(ctx context.Context, tx storage.Tx, workerID int64, now time.Time) (*internal.TimeEntry, error) {
	open, err := tx.ListOpenEntries(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}
	if len(open) > 1 {
		ids := make([]int64, len(open))
		for i := range open {
			ids[i] = open[i].ID
		}
		m.logger.Errorf("worker %d: %v: %d open entries %v, keeping %d",
			workerID, internal.ErrInconsistency, len(open), ids, open[0].ID)
		for i := 1; i < len(open); i++ {
			dup := open[i]
			dup.Close(now)
			dup.UpdatedAt = now
			if err := tx.UpdateEntry(ctx, &dup); err != nil {
				return nil, err
			}
		}
	}
	first := open[0]
	return &first, nil
}

func (m *SessionManager) lookup(ctx context.Context, workerID, categoryID int64) (*internal.Category, error) {
	if _, err := m.store.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}
	return m.store.GetCategory(ctx, categoryID)
}

// Switch closes the open entry (if its category differs) and opens a new one
// for categoryID, both in one unit of work. Switching to the running category
// is a no-op reported through SwitchResult.Rejection.
func (m *SessionManager) Switch(ctx context.Context, workerID, categoryID int64) (*SwitchResult, error) {
	cat, err := m.lookup(ctx, workerID, categoryID)
	if err != nil {
		return nil, err
	}

	var result *SwitchResult
	err = m.withinTx(ctx, workerID, func(ctx context.Context, tx storage.Tx) error {
		result = &SwitchResult{}
		now := m.clock()

		open, err := m.openEntry(ctx, tx, workerID, now)
		if err != nil {
			return err
		}
		if open != nil && open.CategoryID == categoryID {
			result.Entry = open
			result.Rejection = RejectSameCategory
			return nil
		}
		if open != nil {
			open.Close(now)
			open.UpdatedAt = now
			if err := tx.UpdateEntry(ctx, open); err != nil {
				return err
			}
			result.Closed = open
		}

		entry := &internal.TimeEntry{
			WorkerID:     workerID,
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			StartTime:    now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}
		result.Entry = entry
		return nil
	})
	if err != nil {
		m.logger.Errorf("worker %d: switch to category %d failed: %v", workerID, categoryID, err)
		return nil, err
	}
	if result.Rejection == "" {
		m.logger.Infof("worker %d: switched to %q (entry %d)", workerID, cat.Name, result.Entry.ID)
	}
	return result, nil
}

// Stop closes the open entry. A nil entry with a nil error means nothing was open.
func (m *SessionManager) Stop(ctx context.Context, workerID int64) (*internal.TimeEntry, error) {
	if _, err := m.store.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}

	var closed *internal.TimeEntry
	err := m.withinTx(ctx, workerID, func(ctx context.Context, tx storage.Tx) error {
		closed = nil
		now := m.clock()
		open, err := m.openEntry(ctx, tx, workerID, now)
		if err != nil || open == nil {
			return err
		}
		open.Close(now)
		open.UpdatedAt = now
		if err := tx.UpdateEntry(ctx, open); err != nil {
			return err
		}
		closed = open
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// Active returns the open entry or nil. It takes no lock.
func (m *SessionManager) Active(ctx context.Context, workerID int64) (*internal.TimeEntry, error) {
	open, err := m.store.ListOpenEntries(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}
	return &open[0], nil
}

// CreateManual inserts an entry at start outside the switch flow. The entry
// fills the time up to the next entry of that day; with no successor it takes
// over from an earlier open entry, stays open when it is the latest entry of
// today, and otherwise ends at the end of its day (or now). A start inside a
// closed entry is rejected. Its stored duration comes from reconstructing the
// day after insertion.
func (m *SessionManager) CreateManual(ctx context.Context, workerID, categoryID int64, start time.Time) (*internal.TimeEntry, error) {
	start = start.UTC().Truncate(time.Second)
	if start.After(m.clock()) {
		return nil, fmt.Errorf("%w: start time %s is in the future", internal.ErrValidation, start.Format(time.RFC3339))
	}
	cat, err := m.lookup(ctx, workerID, categoryID)
	if err != nil {
		return nil, err
	}

	day := internal.DayOf(start.In(m.loc))
	from, to := CalendarDayBounds(day, m.loc)

	var entry *internal.TimeEntry
	err = m.withinTx(ctx, workerID, func(ctx context.Context, tx storage.Tx) error {
		now := m.clock()
		entry = &internal.TimeEntry{
			WorkerID:     workerID,
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			StartTime:    start,
			IsManual:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		dayEntries, err := tx.ListEntries(ctx, workerID, from, to)
		if err != nil {
			return err
		}
		open, err := m.openEntry(ctx, tx, workerID, now)
		if err != nil {
			return err
		}

		var successor *internal.TimeEntry
		for i := range dayEntries {
			e := &dayEntries[i]
			if !e.StartTime.Before(start) {
				successor = e
				break
			}
			if e.EndTime != nil && e.EndTime.After(start) {
				return fmt.Errorf("%w: start falls inside entry %d", internal.ErrValidation, e.ID)
			}
		}

		var end *time.Time
		switch {
		case successor != nil:
			end = &successor.StartTime
		case open != nil && open.StartTime.Before(start):
			open.Close(start)
			open.UpdatedAt = now
			if err := tx.UpdateEntry(ctx, open); err != nil {
				return err
			}
		case open == nil && day == internal.DayOf(now.In(m.loc)):
		default:
			e := to.UTC()
			if now.Before(e) {
				e = now
			}
			end = &e
		}
		if end != nil {
			e := *end
			entry.EndTime = &e
		}

		if err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}
		if entry.IsOpen() {
			return nil
		}

		dayEntries, err = tx.ListEntries(ctx, workerID, from, to)
		if err != nil {
			return err
		}
		for _, seg := range Reconstruct(dayEntries, day, m.loc, now) {
			if seg.Kind == internal.SegmentTask && seg.EntryID == entry.ID {
				d := seg.DurationSeconds
				entry.Duration = &d
				return tx.UpdateEntry(ctx, entry)
			}
		}
		return fmt.Errorf("%w: manual entry %d missing from its day", internal.ErrInconsistency, entry.ID)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Infof("worker %d: manual entry %d for %q at %s", workerID, entry.ID, cat.Name, start.Format(time.RFC3339))
	return entry, nil
}

// Edit applies req to an entry owned by actor (or any entry for an admin).
// Timing may only change on manual entries.
func (m *SessionManager) Edit(ctx context.Context, actor Actor, entryID int64, req *EditRequest) (*internal.TimeEntry, error) {
	current, err := m.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if current.WorkerID != actor.WorkerID && !actor.IsAdmin() {
		return nil, fmt.Errorf("entry %d belongs to another worker: %w", entryID, internal.ErrPermission)
	}
	var cat *internal.Category
	if req.CategoryID != nil {
		if cat, err = m.store.GetCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	var entry *internal.TimeEntry
	err = m.withinTx(ctx, current.WorkerID, func(ctx context.Context, tx storage.Tx) error {
		now := m.clock()
		e, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		entry = e
		changed := false

		if cat != nil && cat.ID != e.CategoryID {
			e.CategoryID = cat.ID
			e.CategoryName = cat.Name
			changed = true
		}

		if req.StartTime != nil || req.EndTime != nil {
			if !e.IsManual {
				return fmt.Errorf("%w: only manual entries can change start or end time", internal.ErrValidation)
			}
			start := e.StartTime
			if req.StartTime != nil {
				start = req.StartTime.UTC().Truncate(time.Second)
			}
			end := e.EndTime
			if req.EndTime != nil {
				t := req.EndTime.UTC().Truncate(time.Second)
				end = &t
			}
			if start.After(now) || (end != nil && end.After(now)) {
				return fmt.Errorf("%w: times must not be in the future", internal.ErrValidation)
			}
			if end != nil && end.Before(start) {
				return fmt.Errorf("%w: end time before start time", internal.ErrValidation)
			}
			if !start.Equal(e.StartTime) || !sameInstant(end, e.EndTime) {
				e.StartTime = start
				if end != nil {
					e.Close(*end)
				}
				changed = true
			}
		}

		if !changed {
			return nil
		}
		e.IsEdited = true
		e.UpdatedAt = now
		return tx.UpdateEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Timeline reconstructs one calendar day for workerID.
func (m *SessionManager) Timeline(ctx context.Context, workerID int64, day internal.Day) ([]internal.Segment, error) {
	from, to := CalendarDayBounds(day, m.loc)
	entries, err := m.store.ListEntries(ctx, workerID, from, to)
	if err != nil {
		return nil, err
	}
	return Reconstruct(entries, day, m.loc, m.clock()), nil
}

// Today is the current calendar day in the configured location.
func (m *SessionManager) Today() internal.Day {
	return internal.DayOf(m.clock().In(m.loc))
}

// History lists the worker's entries of the last n calendar days, newest first.
func (m *SessionManager) History(ctx context.Context, workerID int64, days int) ([]internal.TimeEntry, error) {
	if days < 1 || days > 366 {
		return nil, fmt.Errorf("%w: days must be between 1 and 366", internal.ErrValidation)
	}
	today := m.Today()
	from := today.AddDays(-(days - 1)).Start(m.loc)
	to := today.AddDays(1).Start(m.loc)
	entries, err := m.store.ListEntries(ctx, workerID, from, to)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].StartTime.Equal(entries[j].StartTime) {
			return entries[i].StartTime.After(entries[j].StartTime)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}
