package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

func TestLeave_UsesBusinessDay(t *testing.T) {
	f := newFileFixture(t)

	f.clock.Set(at("2026-10-16 04:59"))
	d, err := f.days.Leave(f.ctx, f.worker.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2026-10-15"), d)

	f.clock.Set(at("2026-10-16 05:00"))
	d, err = f.days.Leave(f.ctx, f.worker.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2026-10-16"), d)

	st, err := f.store.GetDailyStatus(f.ctx, f.worker.ID, day("2026-10-15"))
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.HasLeft)
}

func TestLeaveAndResume(t *testing.T) {
	f := newFileFixture(t)
	f.clock.Set(at("2026-10-15 18:00"))

	today, err := f.days.Today(f.ctx, f.worker.ID)
	require.NoError(t, err)
	assert.False(t, today.HasLeft)
	assert.Equal(t, day("2026-10-15"), today.Date)

	_, err = f.days.Leave(f.ctx, f.worker.ID)
	require.NoError(t, err)
	today, err = f.days.Today(f.ctx, f.worker.ID)
	require.NoError(t, err)
	assert.True(t, today.HasLeft)

	f.clock.Set(at("2026-10-15 18:30"))
	require.NoError(t, f.days.Resume(f.ctx, f.worker.ID))
	today, err = f.days.Today(f.ctx, f.worker.ID)
	require.NoError(t, err)
	assert.False(t, today.HasLeft)

	require.NoError(t, f.days.Resume(f.ctx, f.other.ID), "resume without a record is a no-op")
}

func TestCheckPreviousDay(t *testing.T) {
	f := newFileFixture(t)
	ctx := f.ctx

	f.clock.Set(at("2026-10-16 10:00"))
	st, err := f.days.CheckPreviousDay(ctx, f.worker.ID)
	require.NoError(t, err)
	assert.Nil(t, st, "nothing happened yesterday")

	f.clock.Set(at("2026-10-15 09:00"))
	_, err = f.sessions.Switch(ctx, f.worker.ID, f.cat("Email"))
	require.NoError(t, err)

	f.clock.Set(at("2026-10-16 10:00"))
	st, err = f.days.CheckPreviousDay(ctx, f.worker.ID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, day("2026-10-15"), st.Date)
	assert.True(t, st.HasUnstoppedTasks)
	assert.False(t, st.HasLeft)
	assert.True(t, st.NeedsFix)
}

func TestCheckPreviousDay_CleanDay(t *testing.T) {
	f := newFileFixture(t)
	ctx := f.ctx

	f.clock.Set(at("2026-10-15 09:00"))
	_, err := f.sessions.Switch(ctx, f.worker.ID, f.cat("Email"))
	require.NoError(t, err)
	f.clock.Set(at("2026-10-15 18:00"))
	_, err = f.sessions.Stop(ctx, f.worker.ID)
	require.NoError(t, err)
	_, err = f.days.Leave(ctx, f.worker.ID)
	require.NoError(t, err)

	f.clock.Set(at("2026-10-16 09:00"))
	st, err := f.days.CheckPreviousDay(ctx, f.worker.ID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, st.NeedsFix)
}

func TestFix_ClosesOpenEntriesAndIsIdempotent(t *testing.T) {
	for name, mk := range map[string]func(*testing.T) *fixture{
		"file":   newFileFixture,
		"sqlite": newSQLiteFixture,
	} {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := f.ctx

			f.clock.Set(at("2026-10-15 09:00"))
			res, err := f.sessions.Switch(ctx, f.worker.ID, f.cat("Email"))
			require.NoError(t, err)

			f.clock.Set(at("2026-10-16 10:00"))
			st, err := f.days.Fix(ctx, f.worker.ID, day("2026-10-15"))
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.True(t, st.IsFixed)
			assert.True(t, st.HasLeft)
			assert.False(t, st.HasUnstoppedTasks)
			assert.False(t, st.NeedsFix)

			e, err := f.store.GetEntry(ctx, res.Entry.ID)
			require.NoError(t, err)
			require.NotNil(t, e.EndTime)
			assert.True(t, e.EndTime.Equal(at("2026-10-16 05:00")))
			assert.Equal(t, int64(20*3600), *e.Duration)
			assert.False(t, e.IsEdited)

			f.clock.Set(at("2026-10-16 11:00"))
			again, err := f.days.Fix(ctx, f.worker.ID, day("2026-10-15"))
			require.NoError(t, err)
			assert.True(t, again.FixedAt.Equal(*st.FixedAt), "second fix changes nothing")

			e2, err := f.store.GetEntry(ctx, res.Entry.ID)
			require.NoError(t, err)
			assert.True(t, e2.UpdatedAt.Equal(e.UpdatedAt))
		})
	}
}

func TestFix_RejectsCurrentDay(t *testing.T) {
	f := newFileFixture(t)
	f.clock.Set(at("2026-10-16 10:00"))

	_, err := f.days.Fix(f.ctx, f.worker.ID, day("2026-10-16"))
	assert.ErrorIs(t, err, internal.ErrValidation)

	_, err = f.days.Fix(f.ctx, 999, day("2026-10-15"))
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func TestValidateFixRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateFixRequest(&FixRequest{}), internal.ErrValidation)
	assert.NoError(t, ValidateFixRequest(&FixRequest{Date: day("2026-10-15")}))
}
