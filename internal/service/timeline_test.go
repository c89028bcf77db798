package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

func closedEntry(id int64, name string, start, end time.Time) internal.TimeEntry {
	e := internal.TimeEntry{ID: id, WorkerID: 1, CategoryID: id, CategoryName: name, StartTime: start.UTC()}
	e.Close(end.UTC())
	return e
}

func openEntry(id int64, name string, start time.Time) internal.TimeEntry {
	return internal.TimeEntry{ID: id, WorkerID: 1, CategoryID: id, CategoryName: name, StartTime: start.UTC()}
}

func TestReconstruct_TasksAndBreak(t *testing.T) {
	entries := []internal.TimeEntry{
		openEntry(3, "Code", at("2026-10-15 10:15")),
		closedEntry(1, "Email", at("2026-10-15 09:00"), at("2026-10-15 09:30")),
		closedEntry(2, "Meeting", at("2026-10-15 09:30"), at("2026-10-15 10:00")),
	}

	segs := Reconstruct(entries, day("2026-10-15"), jst, at("2026-10-15 10:30"))
	require.Len(t, segs, 4)

	assert.Equal(t, internal.SegmentTask, segs[0].Kind)
	assert.Equal(t, "Email", segs[0].CategoryName)
	assert.Equal(t, int64(1800), segs[0].DurationSeconds)

	assert.Equal(t, internal.SegmentTask, segs[1].Kind)
	assert.Equal(t, "Meeting", segs[1].CategoryName)
	assert.Equal(t, int64(1800), segs[1].DurationSeconds)

	assert.Equal(t, internal.SegmentBreak, segs[2].Kind)
	assert.Equal(t, int64(900), segs[2].DurationSeconds)
	assert.True(t, segs[2].Start.Equal(at("2026-10-15 10:00")))
	assert.True(t, segs[2].End.Equal(at("2026-10-15 10:15")))

	assert.Equal(t, internal.SegmentTask, segs[3].Kind)
	assert.Equal(t, "Code", segs[3].CategoryName)
	assert.Equal(t, int64(900), segs[3].DurationSeconds)
	assert.True(t, segs[3].Active)
}

func TestReconstruct_DropsDegenerateAndOtherDays(t *testing.T) {
	zero := closedEntry(2, "Blip", at("2026-10-15 09:10"), at("2026-10-15 09:10"))
	entries := []internal.TimeEntry{
		closedEntry(1, "Email", at("2026-10-15 09:00"), at("2026-10-15 09:10")),
		zero,
		closedEntry(3, "Yesterday", at("2026-10-14 23:00"), at("2026-10-14 23:30")),
		closedEntry(4, "Tomorrow", at("2026-10-16 00:00"), at("2026-10-16 00:30")),
	}

	segs := Reconstruct(entries, day("2026-10-15"), jst, at("2026-10-15 12:00"))
	require.Len(t, segs, 1)
	assert.Equal(t, int64(1), segs[0].EntryID)
}

func TestReconstruct_TiesBrokenByID(t *testing.T) {
	entries := []internal.TimeEntry{
		closedEntry(9, "B", at("2026-10-15 09:00"), at("2026-10-15 09:20")),
		closedEntry(4, "A", at("2026-10-15 09:00"), at("2026-10-15 09:10")),
	}
	segs := Reconstruct(entries, day("2026-10-15"), jst, at("2026-10-15 12:00"))
	require.Len(t, segs, 2)
	assert.Equal(t, int64(4), segs[0].EntryID)
	assert.Equal(t, int64(9), segs[1].EntryID)
}

func TestReconstruct_OverlapProducesNoBreak(t *testing.T) {
	entries := []internal.TimeEntry{
		closedEntry(1, "A", at("2026-10-15 09:00"), at("2026-10-15 10:00")),
		closedEntry(2, "B", at("2026-10-15 09:45"), at("2026-10-15 10:30")),
		closedEntry(3, "C", at("2026-10-15 10:30"), at("2026-10-15 11:00")),
	}
	segs := Reconstruct(entries, day("2026-10-15"), jst, at("2026-10-15 12:00"))
	require.Len(t, segs, 3)
	for _, s := range segs {
		assert.Equal(t, internal.SegmentTask, s.Kind)
	}
}

func TestReconstruct_IdempotentAndTiles(t *testing.T) {
	entries := []internal.TimeEntry{
		closedEntry(1, "Email", at("2026-10-15 08:50"), at("2026-10-15 09:20")),
		closedEntry(2, "Meeting", at("2026-10-15 09:45"), at("2026-10-15 11:00")),
		closedEntry(3, "Code", at("2026-10-15 13:00"), at("2026-10-15 17:30")),
	}
	now := at("2026-10-15 20:00")

	first := Reconstruct(entries, day("2026-10-15"), jst, now)
	second := Reconstruct(entries, day("2026-10-15"), jst, now)
	assert.Equal(t, first, second)

	var total int64
	for _, s := range first {
		total += s.DurationSeconds
	}
	span := first[len(first)-1].End.Sub(first[0].Start)
	assert.Equal(t, int64(span/time.Second), total)
	assert.Len(t, first, 5)
}

func TestReconstruct_LaterNowOnlyGrowsOpenTask(t *testing.T) {
	entries := []internal.TimeEntry{
		closedEntry(1, "Email", at("2026-10-15 09:00"), at("2026-10-15 09:30")),
		openEntry(2, "Code", at("2026-10-15 09:40")),
	}
	early := Reconstruct(entries, day("2026-10-15"), jst, at("2026-10-15 10:00"))
	late := Reconstruct(entries, day("2026-10-15"), jst, at("2026-10-15 11:00"))

	require.Len(t, early, 3)
	require.Len(t, late, 3)
	assert.Equal(t, early[:2], late[:2])
	assert.Equal(t, int64(1200), early[2].DurationSeconds)
	assert.Equal(t, int64(4800), late[2].DurationSeconds)
}

func TestReconstruct_Labels(t *testing.T) {
	manual := closedEntry(1, "A", at("2026-10-15 09:00"), at("2026-10-15 09:10"))
	manual.IsManual = true
	edited := closedEntry(2, "B", at("2026-10-15 09:10"), at("2026-10-15 09:20"))
	edited.IsEdited = true
	both := closedEntry(3, "C", at("2026-10-15 09:20"), at("2026-10-15 09:30"))
	both.IsManual, both.IsEdited = true, true

	segs := Reconstruct([]internal.TimeEntry{manual, edited, both}, day("2026-10-15"), jst, at("2026-10-15 12:00"))
	require.Len(t, segs, 3)
	assert.Equal(t, internal.LabelManual, segs[0].Label)
	assert.Equal(t, internal.LabelEdited, segs[1].Label)
	assert.Equal(t, internal.LabelManualEdited, segs[2].Label)
}

func TestBusinessDay_Cutoff(t *testing.T) {
	assert.Equal(t, day("2026-10-14"), BusinessDay(at("2026-10-15 04:59"), jst))
	assert.Equal(t, day("2026-10-15"), BusinessDay(at("2026-10-15 05:00"), jst))
	assert.Equal(t, day("2026-10-15"), BusinessDay(at("2026-10-15 23:59"), jst))

	from, to := BusinessDayBounds(day("2026-10-15"), jst)
	assert.True(t, from.Equal(at("2026-10-15 05:00")))
	assert.True(t, to.Equal(at("2026-10-16 05:00")))
}
