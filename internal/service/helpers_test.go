package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

var jst = time.FixedZone("JST", 9*60*60)

// at parses "2006-01-02 15:04" in JST.
func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, jst)
	if err != nil {
		panic(err)
	}
	return t
}

func day(s string) internal.Day {
	d, err := internal.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx      context.Context
	store    storage.Store
	clock    *fakeClock
	worker   *internal.Worker
	other    *internal.Worker
	admin    *internal.Worker
	cats     map[string]*internal.Category
	sessions *SessionManager
	days     *DayTracker
}

func newFixture(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		ctx:   ctx,
		store: store,
		clock: &fakeClock{now: at("2026-10-15 09:00")},
		cats:  make(map[string]*internal.Category),
	}

	mkWorker := func(uid string, role internal.Role) *internal.Worker {
		w, err := store.GetOrCreateWorker(ctx, &internal.Worker{
			UID: uid, Name: uid, Role: role, Status: internal.WorkerActive, CreatedAt: f.clock.Now().UTC(),
		})
		require.NoError(t, err)
		return w
	}
	f.worker = mkWorker("alice", internal.RoleUser)
	f.other = mkWorker("bob", internal.RoleUser)
	f.admin = mkWorker("admin", internal.RoleAdmin)

	for i, name := range []string{"Email", "Meeting", "Code"} {
		list := internal.ListPrimary
		if name == "Code" {
			list = internal.ListSecondary
		}
		c := &internal.Category{
			Name: name, Kind: internal.CategorySystem, Priority: i + 1, DefaultList: list,
			CreatedAt: f.clock.Now().UTC(), UpdatedAt: f.clock.Now().UTC(),
		}
		require.NoError(t, store.SaveCategory(ctx, c))
		f.cats[name] = c
	}

	opts := []Option{WithClock(f.clock.Now), WithLocation(jst), WithRetry(3, time.Millisecond)}
	f.sessions = NewSessionManager(store, opts...)
	f.days = NewDayTracker(store, opts...)
	return f
}

func newFileFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewFileStorage(t.TempDir(), internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newFixture(t, store)
}

func newSQLiteFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:", internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return newFixture(t, store)
}

func (f *fixture) cat(name string) int64 { return f.cats[name].ID }

func (f *fixture) openCount(t *testing.T, workerID int64) int {
	t.Helper()
	open, err := f.store.ListOpenEntries(f.ctx, workerID)
	require.NoError(t, err)
	return len(open)
}
