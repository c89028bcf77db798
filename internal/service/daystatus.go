package service

import (
	"context"
	"fmt"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

type FixRequest struct {
	Date internal.Day `json:"date"`
}

func ValidateFixRequest(req *FixRequest) error {
	if req.Date.IsZero() {
		return fmt.Errorf("%w: date is required", internal.ErrValidation)
	}
	return nil
}

// dayReader is satisfied by both storage.Store and storage.Tx.
type dayReader interface {
	storage.EntryReader
	storage.DailyStatusRepository
}

// DayTracker keeps the per (worker, business day) leave/fix record.
type DayTracker struct {
	base
}

func NewDayTracker(store storage.Store, opts ...Option) *DayTracker {
	return &DayTracker{base: newBase(store, opts...)}
}

// CurrentDay is the business day of the server clock.
func (t *DayTracker) CurrentDay() internal.Day {
	return BusinessDay(t.clock(), t.loc)
}

// Leave marks the current business day as left and returns its key. An open
// entry stays open so the next check can flag it.
func (t *DayTracker) Leave(ctx context.Context, workerID int64) (internal.Day, error) {
	now := t.clock()
	day := BusinessDay(now, t.loc)
	err := t.withinTx(ctx, workerID, func(ctx context.Context, tx storage.Tx) error {
		st, err := tx.GetDailyStatus(ctx, workerID, day)
		if err != nil {
			return err
		}
		if st == nil {
			st = &internal.DailyStatus{WorkerID: workerID, Date: day}
		}
		st.HasLeft = true
		st.LeftAt = &now
		st.UpdatedAt = now
		return tx.SaveDailyStatus(ctx, st)
	})
	if err != nil {
		return internal.Day{}, err
	}
	t.logger.Infof("worker %d: left for business day %s", workerID, day)
	return day, nil
}

// Resume clears the leave flag of the current business day. A fixed flag is
// never touched.
func (t *DayTracker) Resume(ctx context.Context, workerID int64) error {
	now := t.clock()
	day := BusinessDay(now, t.loc)
	return t.withinTx(ctx, workerID, func(ctx context.Context, tx storage.Tx) error {
		st, err := tx.GetDailyStatus(ctx, workerID, day)
		if err != nil || st == nil || !st.HasLeft {
			return err
		}
		st.HasLeft = false
		st.UpdatedAt = now
		return tx.SaveDailyStatus(ctx, st)
	})
}

// Today returns the record of the current business day, or an empty view.
func (t *DayTracker) Today(ctx context.Context, workerID int64) (*internal.DailyStatus, error) {
	day := t.CurrentDay()
	st, err := t.store.GetDailyStatus(ctx, workerID, day)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = &internal.DailyStatus{WorkerID: workerID, Date: day}
	}
	return st, nil
}

// evaluate fills the derived flags for a completed day. It returns nil when
// the worker neither worked nor left that day.
func (t *DayTracker) evaluate(ctx context.Context, r dayReader, workerID int64, day internal.Day) (*internal.DailyStatus, error) {
	from, to := BusinessDayBounds(day, t.loc)
	entries, err := r.ListEntries(ctx, workerID, from, to)
	if err != nil {
		return nil, err
	}
	st, err := r.GetDailyStatus(ctx, workerID, day)
	if err != nil {
		return nil, err
	}
	if st == nil && len(entries) == 0 {
		return nil, nil
	}
	if st == nil {
		st = &internal.DailyStatus{WorkerID: workerID, Date: day}
	}
	st.HasUnstoppedTasks = false
	for i := range entries {
		if entries[i].IsOpen() {
			st.HasUnstoppedTasks = true
			break
		}
	}
	st.NeedsFix = st.HasUnstoppedTasks || !st.HasLeft
	return st, nil
}

// CheckPreviousDay evaluates the business day before the current one.
func (t *DayTracker) CheckPreviousDay(ctx context.Context, workerID int64) (*internal.DailyStatus, error) {
	return t.evaluate(ctx, t.store, workerID, t.CurrentDay().AddDays(-1))
}

// Fix closes entries left open on a completed business day at the end of
// that day, then marks it left and fixed. Fixing a fixed day changes nothing.
func (t *DayTracker) Fix(ctx context.Context, workerID int64, day internal.Day) (*internal.DailyStatus, error) {
	if !day.Before(t.CurrentDay()) {
		return nil, fmt.Errorf("%w: %s is not a completed business day", internal.ErrValidation, day)
	}
	if _, err := t.store.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}

	var view *internal.DailyStatus
	var closed int
	err := t.withinTx(ctx, workerID, func(ctx context.Context, tx storage.Tx) error {
		closed = 0
		now := t.clock()
		st, err := tx.GetDailyStatus(ctx, workerID, day)
		if err != nil {
			return err
		}
		if st == nil || !st.IsFixed {
			from, to := BusinessDayBounds(day, t.loc)
			entries, err := tx.ListEntries(ctx, workerID, from, to)
			if err != nil {
				return err
			}
			for i := range entries {
				e := entries[i]
				if !e.IsOpen() {
					continue
				}
				e.Close(to.UTC())
				e.UpdatedAt = now
				if err := tx.UpdateEntry(ctx, &e); err != nil {
					return err
				}
				closed++
			}
			if st == nil {
				st = &internal.DailyStatus{WorkerID: workerID, Date: day}
			}
			st.HasLeft = true
			st.IsFixed = true
			st.FixedAt = &now
			st.UpdatedAt = now
			if err := tx.SaveDailyStatus(ctx, st); err != nil {
				return err
			}
		}
		view, err = t.evaluate(ctx, tx, workerID, day)
		return err
	})
	if err != nil {
		return nil, err
	}
	if closed > 0 {
		t.logger.Infof("worker %d: fixed %s, closed %d open entries", workerID, day, closed)
	}
	return view, nil
}
