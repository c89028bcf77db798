package service

import (
	"sort"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

// Reconstruct turns a worker's entries into the ordered task/break segments
// of one calendar day in loc. It is pure: the same input and now always give
// the same output, and a later now only lengthens the open task.
func Reconstruct(entries []internal.TimeEntry, day internal.Day, loc *time.Location, now time.Time) []internal.Segment {
	from, to := CalendarDayBounds(day, loc)

	kept := make([]internal.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		if e.IsDegenerate() {
			continue
		}
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].StartTime.Equal(kept[j].StartTime) {
			return kept[i].StartTime.Before(kept[j].StartTime)
		}
		return kept[i].ID < kept[j].ID
	})

	segments := make([]internal.Segment, 0, 2*len(kept))
	for i := range kept {
		e := &kept[i]
		seg := internal.Segment{
			Kind:            internal.SegmentTask,
			EntryID:         e.ID,
			CategoryID:      e.CategoryID,
			CategoryName:    e.CategoryName,
			Label:           e.Label(),
			Start:           e.StartTime.In(loc),
			DurationSeconds: e.ElapsedSeconds(now),
		}
		if e.IsOpen() {
			end := now
			if end.Before(e.StartTime) {
				end = e.StartTime
			}
			seg.End = end.In(loc)
			seg.Active = true
		} else {
			seg.End = e.EndTime.In(loc)
		}
		segments = append(segments, seg)

		if e.IsOpen() || i+1 == len(kept) {
			continue
		}
		next := kept[i+1].StartTime
		if gap := next.Sub(*e.EndTime); gap > 0 {
			segments = append(segments, internal.Segment{
				Kind:            internal.SegmentBreak,
				Start:           e.EndTime.In(loc),
				End:             next.In(loc),
				DurationSeconds: int64(gap / time.Second),
			})
		}
	}
	return segments
}
