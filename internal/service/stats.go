package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

type CategoryTotal struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	Seconds      int64  `json:"seconds"`
}

type WorkerStats struct {
	WorkerID     int64           `json:"worker_id"`
	TotalSeconds int64           `json:"total_seconds"`
	Categories   []CategoryTotal `json:"categories"`
}

// Summarize totals entry time per category, largest first. Open entries
// count up to now.
func Summarize(entries []internal.TimeEntry, now time.Time) []CategoryTotal {
	byID := make(map[int64]*CategoryTotal)
	for i := range entries {
		e := &entries[i]
		t, ok := byID[e.CategoryID]
		if !ok {
			t = &CategoryTotal{CategoryID: e.CategoryID, CategoryName: e.CategoryName}
			byID[e.CategoryID] = t
		}
		t.Seconds += e.ElapsedSeconds(now)
	}

	totals := make([]CategoryTotal, 0, len(byID))
	for _, t := range byID {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Seconds != totals[j].Seconds {
			return totals[i].Seconds > totals[j].Seconds
		}
		return totals[i].CategoryID < totals[j].CategoryID
	})
	return totals
}

// Stats totals time per category for each worker over the calendar days [from, to].
func (m *SessionManager) Stats(ctx context.Context, workerIDs []int64, from, to internal.Day) ([]WorkerStats, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from %s is after to %s", internal.ErrValidation, from, to)
	}
	start, end := from.Start(m.loc), to.AddDays(1).Start(m.loc)
	now := m.clock()

	out := make([]WorkerStats, 0, len(workerIDs))
	for _, id := range workerIDs {
		if _, err := m.store.GetWorker(ctx, id); err != nil {
			return nil, err
		}
		entries, err := m.store.ListEntries(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		ws := WorkerStats{WorkerID: id, Categories: Summarize(entries, now)}
		for _, c := range ws.Categories {
			ws.TotalSeconds += c.Seconds
		}
		out = append(out, ws)
	}
	return out, nil
}
