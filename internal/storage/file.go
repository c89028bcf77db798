package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

type collection int

const (
	colWorkers collection = iota
	colCategories
	colEntries
	colPreferences
	colDailyStatus
)

var collectionFiles = map[collection]string{
	colWorkers:     "workers.json",
	colCategories:  "categories.json",
	colEntries:     "time_entries.json",
	colPreferences: "preferences.json",
	colDailyStatus: "daily_status.json",
}

type statusKey struct {
	workerID int64
	day      string
}

type FileStorage struct {
	workers       map[int64]*internal.Worker
	workerByUID   map[string]int64
	categories    map[int64]*internal.Category
	entries       map[int64]*internal.TimeEntry
	workerEntries map[int64][]*internal.TimeEntry // workerID -> entries sorted ascending by start, id
	preferences   map[int64]*internal.WorkerPreference
	dailyStatus   map[statusKey]*internal.DailyStatus
	lastID        map[collection]int64
	dirty         map[collection]bool
	mu            sync.RWMutex

	locks        *workerLocks
	dir          string
	saveChan     chan struct{}
	shutdownChan chan struct{}
	workerDone   chan struct{}
	closeOnce    sync.Once
	saveDelay    time.Duration
	logger       internal.Logger
}

func NewFileStorage(dir string, logger internal.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: creating data dir: %w", err)
	}
	s := &FileStorage{
		workers:       make(map[int64]*internal.Worker),
		workerByUID:   make(map[string]int64),
		categories:    make(map[int64]*internal.Category),
		entries:       make(map[int64]*internal.TimeEntry),
		workerEntries: make(map[int64][]*internal.TimeEntry),
		preferences:   make(map[int64]*internal.WorkerPreference),
		dailyStatus:   make(map[statusKey]*internal.DailyStatus),
		lastID:        make(map[collection]int64),
		dirty:         make(map[collection]bool),
		locks:         newWorkerLocks(),
		dir:           dir,
		saveChan:      make(chan struct{}, 1),
		shutdownChan:  make(chan struct{}),
		workerDone:    make(chan struct{}),
		saveDelay:     500 * time.Millisecond,
		logger:        logger,
	}

	if err := s.load(); err != nil {
		logger.Errorf("storage: failed to load %s: %v", dir, err)
		return nil, err
	}

	go s.saveWorker()

	return s, nil
}

func readJSONFile(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *FileStorage) path(c collection) string {
	return filepath.Join(s.dir, collectionFiles[c])
}

func (s *FileStorage) load() error {
	var workers []*internal.Worker
	var categories []*internal.Category
	var entries []*internal.TimeEntry
	var prefs []*internal.WorkerPreference
	var statuses []*internal.DailyStatus

	targets := map[collection]interface{}{
		colWorkers:     &workers,
		colCategories:  &categories,
		colEntries:     &entries,
		colPreferences: &prefs,
		colDailyStatus: &statuses,
	}
	for c, v := range targets {
		if err := readJSONFile(s.path(c), v); err != nil {
			return fmt.Errorf("storage: reading %s: %w", collectionFiles[c], err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range workers {
		s.workers[w.ID] = w
		s.workerByUID[w.UID] = w.ID
		s.bumpID(colWorkers, w.ID)
	}
	for _, c := range categories {
		s.categories[c.ID] = c
		s.bumpID(colCategories, c.ID)
	}
	for _, e := range entries {
		s.entries[e.ID] = e
		s.workerEntries[e.WorkerID] = append(s.workerEntries[e.WorkerID], e)
		s.bumpID(colEntries, e.ID)
	}
	for workerID := range s.workerEntries {
		s.sortWorkerEntries(workerID)
	}
	for _, p := range prefs {
		s.preferences[p.WorkerID] = p
	}
	for _, st := range statuses {
		s.dailyStatus[statusKey{st.WorkerID, st.Date.String()}] = st
	}
	return nil
}

func (s *FileStorage) bumpID(c collection, id int64) {
	if id > s.lastID[c] {
		s.lastID[c] = id
	}
}

// nextID must be called with mu held for writing.
func (s *FileStorage) nextID(c collection) int64 {
	s.lastID[c]++
	return s.lastID[c]
}

func (s *FileStorage) sortWorkerEntries(workerID int64) {
	sortEntryPtrs(s.workerEntries[workerID])
}

func sortEntryPtrs(list []*internal.TimeEntry) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

// markDirty must be called with mu held for writing.
func (s *FileStorage) markDirty(cs ...collection) {
	for _, c := range cs {
		s.dirty[c] = true
	}
	select {
	case s.saveChan <- struct{}{}:
	default:
	}
}

// snapshot copies the dirty collections under the write lock and clears the dirty set.
func (s *FileStorage) snapshot(all bool) map[collection]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[collection]interface{})
	for c := range collectionFiles {
		if !all && !s.dirty[c] {
			continue
		}
		switch c {
		case colWorkers:
			list := make([]internal.Worker, 0, len(s.workers))
			for _, w := range s.workers {
				list = append(list, *w)
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
			out[c] = list
		case colCategories:
			list := make([]internal.Category, 0, len(s.categories))
			for _, cat := range s.categories {
				list = append(list, *cat)
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
			out[c] = list
		case colEntries:
			list := make([]internal.TimeEntry, 0, len(s.entries))
			for _, e := range s.entries {
				list = append(list, cloneEntry(e))
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
			out[c] = list
		case colPreferences:
			list := make([]internal.WorkerPreference, 0, len(s.preferences))
			for _, p := range s.preferences {
				list = append(list, clonePreference(p))
			}
			sort.Slice(list, func(i, j int) bool { return list[i].WorkerID < list[j].WorkerID })
			out[c] = list
		case colDailyStatus:
			list := make([]internal.DailyStatus, 0, len(s.dailyStatus))
			for _, st := range s.dailyStatus {
				list = append(list, *st)
			}
			sort.Slice(list, func(i, j int) bool {
				if list[i].WorkerID != list[j].WorkerID {
					return list[i].WorkerID < list[j].WorkerID
				}
				return list[i].Date.Before(list[j].Date)
			})
			out[c] = list
		}
		s.dirty[c] = false
	}
	return out
}

func (s *FileStorage) save(all bool) error {
	var firstErr error
	for c, data := range s.snapshot(all) {
		if err := atomicWriteFileJSON(s.path(c), data); err != nil {
			s.mu.Lock()
			s.dirty[c] = true
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("storage: writing %s: %w", collectionFiles[c], err)
			}
		}
	}
	return firstErr
}

func (s *FileStorage) saveWorker() {
	defer close(s.workerDone)
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.save(false); err != nil {
				s.logger.Errorf("storage: error saving data: %v", err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

// Close stops the background writer and flushes everything synchronously.
func (s *FileStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownChan)
		<-s.workerDone
		err = s.save(true)
	})
	return err
}

func (s *FileStorage) Migrate(ctx context.Context) error { return nil }

func cloneEntry(e *internal.TimeEntry) internal.TimeEntry {
	c := *e
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	if e.Duration != nil {
		d := *e.Duration
		c.Duration = &d
	}
	return c
}

func clonePreference(p *internal.WorkerPreference) internal.WorkerPreference {
	c := *p
	c.Primary = append([]int64(nil), p.Primary...)
	c.Secondary = append([]int64(nil), p.Secondary...)
	c.Hidden = append([]int64(nil), p.Hidden...)
	return c
}

// --- WorkerRepository ---
func (s *FileStorage) GetWorker(ctx context.Context, id int64) (*internal.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker %d: %w", id, internal.ErrNotFound)
	}
	c := *w
	return &c, nil
}

func (s *FileStorage) GetWorkerByUID(ctx context.Context, uid string) (*internal.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.workerByUID[uid]
	if !ok {
		return nil, fmt.Errorf("worker %q: %w", uid, internal.ErrNotFound)
	}
	c := *s.workers[id]
	return &c, nil
}

func (s *FileStorage) GetOrCreateWorker(ctx context.Context, tmpl *internal.Worker) (*internal.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.workerByUID[tmpl.UID]; ok {
		c := *s.workers[id]
		return &c, nil
	}
	w := *tmpl
	w.ID = s.nextID(colWorkers)
	s.workers[w.ID] = &w
	s.workerByUID[w.UID] = w.ID
	s.markDirty(colWorkers)
	c := w
	return &c, nil
}

func (s *FileStorage) ListWorkers(ctx context.Context) ([]internal.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]internal.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		list = append(list, *w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// --- CategoryRepository ---
func (s *FileStorage) GetCategory(ctx context.Context, id int64) (*internal.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, internal.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *FileStorage) ListCategories(ctx context.Context) ([]internal.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]internal.Category, 0, len(s.categories))
	for _, c := range s.categories {
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (s *FileStorage) SaveCategory(ctx context.Context, c *internal.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID(colCategories)
	} else if _, ok := s.categories[c.ID]; !ok {
		return fmt.Errorf("category %d: %w", c.ID, internal.ErrNotFound)
	}
	cp := *c
	s.categories[c.ID] = &cp
	s.markDirty(colCategories)
	return nil
}

// --- PreferenceRepository ---
func (s *FileStorage) GetPreference(ctx context.Context, workerID int64) (*internal.WorkerPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preferences[workerID]
	if !ok {
		return nil, nil
	}
	c := clonePreference(p)
	return &c, nil
}

func (s *FileStorage) SavePreference(ctx context.Context, p *internal.WorkerPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clonePreference(p)
	s.preferences[p.WorkerID] = &c
	s.markDirty(colPreferences)
	return nil
}

// --- EntryReader ---
func (s *FileStorage) GetEntry(ctx context.Context, id int64) (*internal.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("time entry %d: %w", id, internal.ErrNotFound)
	}
	c := cloneEntry(e)
	return &c, nil
}

func (s *FileStorage) ListEntries(ctx context.Context, workerID int64, from, to time.Time) ([]internal.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEntries(s.workerEntries[workerID], func(e *internal.TimeEntry) bool {
		return !e.StartTime.Before(from) && e.StartTime.Before(to)
	}), nil
}

func (s *FileStorage) ListOpenEntries(ctx context.Context, workerID int64) ([]internal.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEntries(s.workerEntries[workerID], (*internal.TimeEntry).IsOpen), nil
}

func filterEntries(list []*internal.TimeEntry, keep func(*internal.TimeEntry) bool) []internal.TimeEntry {
	out := []internal.TimeEntry{}
	for _, e := range list {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

// --- DailyStatusRepository ---
func (s *FileStorage) GetDailyStatus(ctx context.Context, workerID int64, day internal.Day) (*internal.DailyStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.dailyStatus[statusKey{workerID, day.String()}]
	if !ok {
		return nil, nil
	}
	c := *st
	return &c, nil
}

func (s *FileStorage) SaveDailyStatus(ctx context.Context, st *internal.DailyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putDailyStatus(st)
	s.markDirty(colDailyStatus)
	return nil
}

func (s *FileStorage) putDailyStatus(st *internal.DailyStatus) {
	c := *st
	c.HasUnstoppedTasks, c.NeedsFix = false, false
	s.dailyStatus[statusKey{st.WorkerID, st.Date.String()}] = &c
}

// WithinWorkerTx serializes units of work per worker. Writes are staged in the
// tx and applied under a single write lock on success, so readers see either
// the state before or after the unit of work.
func (s *FileStorage) WithinWorkerTx(ctx context.Context, workerID int64, fn func(ctx context.Context, tx Tx) error) error {
	unlock := s.locks.Lock(workerID)
	defer unlock()

	tx := &fileTx{
		s:        s,
		entries:  make(map[int64]*internal.TimeEntry),
		statuses: make(map[statusKey]*internal.DailyStatus),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type fileTx struct {
	s        *FileStorage
	entries  map[int64]*internal.TimeEntry // staged inserts and updates
	statuses map[statusKey]*internal.DailyStatus
}

func (t *fileTx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[int64]bool)
	for id, e := range t.entries {
		if old, ok := s.entries[id]; ok {
			*old = cloneEntry(e)
		} else {
			c := cloneEntry(e)
			s.entries[id] = &c
			s.workerEntries[c.WorkerID] = append(s.workerEntries[c.WorkerID], &c)
		}
		touched[e.WorkerID] = true
	}
	for workerID := range touched {
		s.sortWorkerEntries(workerID)
	}
	for _, st := range t.statuses {
		s.putDailyStatus(st)
	}
	if len(t.entries) > 0 {
		s.markDirty(colEntries)
	}
	if len(t.statuses) > 0 {
		s.markDirty(colDailyStatus)
	}
}

func (t *fileTx) GetEntry(ctx context.Context, id int64) (*internal.TimeEntry, error) {
	if e, ok := t.entries[id]; ok {
		c := cloneEntry(e)
		return &c, nil
	}
	return t.s.GetEntry(ctx, id)
}

// merged overlays the staged entries on the committed ones for a worker.
func (t *fileTx) merged(workerID int64) []*internal.TimeEntry {
	t.s.mu.RLock()
	base := t.s.workerEntries[workerID]
	list := make([]*internal.TimeEntry, 0, len(base)+len(t.entries))
	for _, e := range base {
		if _, staged := t.entries[e.ID]; !staged {
			c := cloneEntry(e)
			list = append(list, &c)
		}
	}
	t.s.mu.RUnlock()

	for _, e := range t.entries {
		if e.WorkerID == workerID {
			c := cloneEntry(e)
			list = append(list, &c)
		}
	}
	sortEntryPtrs(list)
	return list
}

func (t *fileTx) ListEntries(ctx context.Context, workerID int64, from, to time.Time) ([]internal.TimeEntry, error) {
	return filterEntries(t.merged(workerID), func(e *internal.TimeEntry) bool {
		return !e.StartTime.Before(from) && e.StartTime.Before(to)
	}), nil
}

func (t *fileTx) ListOpenEntries(ctx context.Context, workerID int64) ([]internal.TimeEntry, error) {
	return filterEntries(t.merged(workerID), (*internal.TimeEntry).IsOpen), nil
}

func (t *fileTx) InsertEntry(ctx context.Context, e *internal.TimeEntry) error {
	t.s.mu.Lock()
	e.ID = t.s.nextID(colEntries)
	t.s.mu.Unlock()
	c := cloneEntry(e)
	t.entries[e.ID] = &c
	return nil
}

func (t *fileTx) UpdateEntry(ctx context.Context, e *internal.TimeEntry) error {
	if _, ok := t.entries[e.ID]; !ok {
		t.s.mu.RLock()
		_, exists := t.s.entries[e.ID]
		t.s.mu.RUnlock()
		if !exists {
			return fmt.Errorf("time entry %d: %w", e.ID, internal.ErrNotFound)
		}
	}
	c := cloneEntry(e)
	t.entries[e.ID] = &c
	return nil
}

func (t *fileTx) GetDailyStatus(ctx context.Context, workerID int64, day internal.Day) (*internal.DailyStatus, error) {
	if st, ok := t.statuses[statusKey{workerID, day.String()}]; ok {
		c := *st
		return &c, nil
	}
	return t.s.GetDailyStatus(ctx, workerID, day)
}

func (t *fileTx) SaveDailyStatus(ctx context.Context, st *internal.DailyStatus) error {
	c := *st
	t.statuses[statusKey{st.WorkerID, st.Date.String()}] = &c
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)
var _ Tx = (*fileTx)(nil)
