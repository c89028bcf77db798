package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

var t0 = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir(), internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	ss, err := NewSQLiteStorage(":memory:", internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })
	require.NoError(t, ss.Migrate(context.Background()))

	return map[string]Store{"file": fs, "sqlite": ss}
}

func seedWorker(t *testing.T, s Store, uid string) *internal.Worker {
	t.Helper()
	w, err := s.GetOrCreateWorker(context.Background(), &internal.Worker{
		UID: uid, Name: uid, Role: internal.RoleUser, Status: internal.WorkerActive, CreatedAt: t0,
	})
	require.NoError(t, err)
	return w
}

func seedCategory(t *testing.T, s Store, name string, priority int) *internal.Category {
	t.Helper()
	c := &internal.Category{
		Name: name, Kind: internal.CategorySystem, Priority: priority,
		DefaultList: internal.ListPrimary, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, s.SaveCategory(context.Background(), c))
	return c
}

func insertEntry(t *testing.T, s Store, e *internal.TimeEntry) {
	t.Helper()
	err := s.WithinWorkerTx(context.Background(), e.WorkerID, func(ctx context.Context, tx Tx) error {
		return tx.InsertEntry(ctx, e)
	})
	require.NoError(t, err)
}

func TestStores_Workers(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := seedWorker(t, s, "u-1")
			assert.NotZero(t, w.ID)

			again := seedWorker(t, s, "u-1")
			assert.Equal(t, w.ID, again.ID, "provisioning is idempotent per uid")

			byUID, err := s.GetWorkerByUID(ctx, "u-1")
			require.NoError(t, err)
			assert.Equal(t, w.ID, byUID.ID)

			_, err = s.GetWorker(ctx, 999)
			assert.ErrorIs(t, err, internal.ErrNotFound)
			_, err = s.GetWorkerByUID(ctx, "nobody")
			assert.ErrorIs(t, err, internal.ErrNotFound)

			seedWorker(t, s, "u-2")
			all, err := s.ListWorkers(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestStores_Categories(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := seedCategory(t, s, "B", 2)
			a := seedCategory(t, s, "A", 1)

			list, err := s.ListCategories(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "A", list[0].Name)

			b.Priority = 0
			b.DefaultList = internal.ListHidden
			require.NoError(t, s.SaveCategory(ctx, b))
			got, err := s.GetCategory(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, internal.ListHidden, got.DefaultList)

			list, err = s.ListCategories(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int64{b.ID, a.ID}, []int64{list[0].ID, list[1].ID})

			_, err = s.GetCategory(ctx, 999)
			assert.ErrorIs(t, err, internal.ErrNotFound)
			assert.ErrorIs(t, s.SaveCategory(ctx, &internal.Category{ID: 999, Name: "ghost"}), internal.ErrNotFound)
		})
	}
}

func TestStores_Preferences(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := seedWorker(t, s, "u-1")

			pref, err := s.GetPreference(ctx, w.ID)
			require.NoError(t, err)
			assert.Nil(t, pref)

			require.NoError(t, s.SavePreference(ctx, &internal.WorkerPreference{
				WorkerID: w.ID, Primary: []int64{3, 1}, Secondary: []int64{2}, UpdatedAt: t0,
			}))
			pref, err = s.GetPreference(ctx, w.ID)
			require.NoError(t, err)
			require.NotNil(t, pref)
			assert.Equal(t, []int64{3, 1}, pref.Primary)
			assert.Equal(t, []int64{2}, pref.Secondary)
			assert.Empty(t, pref.Hidden)

			require.NoError(t, s.SavePreference(ctx, &internal.WorkerPreference{
				WorkerID: w.ID, Hidden: []int64{3}, UpdatedAt: t0,
			}))
			pref, err = s.GetPreference(ctx, w.ID)
			require.NoError(t, err)
			assert.Empty(t, pref.Primary)
			assert.Equal(t, []int64{3}, pref.Hidden)
		})
	}
}

func TestStores_EntriesOrderedAndRanged(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := seedWorker(t, s, "u-1")
			c := seedCategory(t, s, "Email", 1)

			mk := func(start time.Time, end *time.Time) *internal.TimeEntry {
				e := &internal.TimeEntry{WorkerID: w.ID, CategoryID: c.ID, CategoryName: c.Name, StartTime: start, CreatedAt: start, UpdatedAt: start}
				if end != nil {
					e.Close(*end)
				}
				return e
			}
			later := t0.Add(3 * time.Hour)
			first := t0.Add(time.Hour)
			e2 := mk(later, nil)
			end := first.Add(30 * time.Minute)
			e1 := mk(first, &end)
			insertEntry(t, s, e2)
			insertEntry(t, s, e1)
			nextDayEnd := t0.Add(31 * time.Hour)
			insertEntry(t, s, mk(t0.Add(30*time.Hour), &nextDayEnd))

			list, err := s.ListEntries(ctx, w.ID, t0, t0.Add(24*time.Hour))
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, e1.ID, list[0].ID)
			assert.Equal(t, e2.ID, list[1].ID)
			assert.Equal(t, int64(1800), *list[0].Duration)
			assert.True(t, list[0].EndTime.Equal(end))

			open, err := s.ListOpenEntries(ctx, w.ID)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, e2.ID, open[0].ID)

			_, err = s.GetEntry(ctx, 999)
			assert.ErrorIs(t, err, internal.ErrNotFound)
		})
	}
}

func TestStores_TxRollbackDiscardsWrites(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := seedWorker(t, s, "u-1")
			c := seedCategory(t, s, "Email", 1)
			boom := errors.New("boom")

			err := s.WithinWorkerTx(ctx, w.ID, func(ctx context.Context, tx Tx) error {
				e := &internal.TimeEntry{WorkerID: w.ID, CategoryID: c.ID, CategoryName: c.Name, StartTime: t0, CreatedAt: t0, UpdatedAt: t0}
				if err := tx.InsertEntry(ctx, e); err != nil {
					return err
				}
				open, err := tx.ListOpenEntries(ctx, w.ID)
				if err != nil {
					return err
				}
				assert.Len(t, open, 1, "the tx sees its own writes")
				if err := tx.SaveDailyStatus(ctx, &internal.DailyStatus{WorkerID: w.ID, Date: internal.DayOf(t0), HasLeft: true, UpdatedAt: t0}); err != nil {
					return err
				}
				return boom
			})
			assert.ErrorIs(t, err, boom)

			open, err := s.ListOpenEntries(ctx, w.ID)
			require.NoError(t, err)
			assert.Empty(t, open)
			st, err := s.GetDailyStatus(ctx, w.ID, internal.DayOf(t0))
			require.NoError(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestStores_DailyStatus(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := seedWorker(t, s, "u-1")
			day := internal.DayOf(t0)

			left := t0.Add(18 * time.Hour)
			require.NoError(t, s.SaveDailyStatus(ctx, &internal.DailyStatus{
				WorkerID: w.ID, Date: day, HasLeft: true, LeftAt: &left,
				NeedsFix: true, HasUnstoppedTasks: true, UpdatedAt: left,
			}))

			st, err := s.GetDailyStatus(ctx, w.ID, day)
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.Equal(t, day, st.Date)
			assert.True(t, st.HasLeft)
			assert.False(t, st.IsFixed)
			assert.False(t, st.NeedsFix, "derived flags are not stored")
			assert.False(t, st.HasUnstoppedTasks)
			require.NotNil(t, st.LeftAt)
			assert.True(t, st.LeftAt.Equal(left))

			other, err := s.GetDailyStatus(ctx, w.ID, day.AddDays(1))
			require.NoError(t, err)
			assert.Nil(t, other)
		})
	}
}
