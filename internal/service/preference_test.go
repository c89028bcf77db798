package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

func names(cats []internal.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}

func layoutCategories() []internal.Category {
	return []internal.Category{
		{ID: 1, Name: "Email", Kind: internal.CategorySystem, Priority: 1, DefaultList: internal.ListPrimary},
		{ID: 2, Name: "Meeting", Kind: internal.CategorySystem, Priority: 2, DefaultList: internal.ListPrimary},
		{ID: 3, Name: "Code", Kind: internal.CategorySystem, Priority: 3, DefaultList: internal.ListSecondary},
		{ID: 4, Name: "Review", Kind: internal.CategorySystem, Priority: 4, DefaultList: internal.ListSecondary},
		{ID: 5, Name: "Archive", Kind: internal.CategorySystem, Priority: 5, DefaultList: internal.ListHidden},
		{ID: 6, Name: "Side project", Kind: internal.CategoryCustom, Priority: 6, DefaultList: internal.ListSecondary},
	}
}

func TestResolveLayout_NoPreferenceUsesSystemDefaults(t *testing.T) {
	primary, secondary := ResolveLayout(layoutCategories(), nil, internal.RoleUser)
	assert.Equal(t, []string{"Email", "Meeting"}, names(primary))
	assert.Equal(t, []string{"Code", "Review"}, names(secondary))

	primary, secondary = ResolveLayout(layoutCategories(), &internal.WorkerPreference{}, internal.RoleUser)
	assert.Equal(t, []string{"Email", "Meeting"}, names(primary))
	assert.Equal(t, []string{"Code", "Review"}, names(secondary))
}

func TestResolveLayout_AdminIgnoresPreference(t *testing.T) {
	pref := &internal.WorkerPreference{Primary: []int64{4}, Secondary: []int64{1}}
	primary, secondary := ResolveLayout(layoutCategories(), pref, internal.RoleAdmin)
	assert.Equal(t, []string{"Email", "Meeting"}, names(primary))
	assert.Equal(t, []string{"Code", "Review", "Side project"}, names(secondary))
}

func TestResolveLayout_SavedOrderWithOrphans(t *testing.T) {
	pref := &internal.WorkerPreference{
		Primary:   []int64{3, 1, 3},
		Secondary: []int64{6, 1},
		Hidden:    []int64{2},
	}
	primary, secondary := ResolveLayout(layoutCategories(), pref, internal.RoleUser)
	assert.Equal(t, []string{"Code", "Email"}, names(primary), "saved order kept, duplicates dropped")
	assert.Equal(t, []string{"Side project", "Review"}, names(secondary), "orphan appended once, hidden skipped")
}

func TestResolveLayout_UnknownIDsIgnored(t *testing.T) {
	pref := &internal.WorkerPreference{Primary: []int64{99, 2}}
	primary, secondary := ResolveLayout(layoutCategories(), pref, internal.RoleUser)
	assert.Equal(t, []string{"Meeting", "Email"}, names(primary))
	assert.Equal(t, []string{"Code", "Review"}, names(secondary))
}

func TestValidateSettingsRequest(t *testing.T) {
	cats := layoutCategories()

	assert.NoError(t, ValidateSettingsRequest(&SettingsRequest{Primary: []int64{1, 2}, Hidden: []int64{5}}, cats))
	assert.NoError(t, ValidateSettingsRequest(&SettingsRequest{}, cats))

	err := ValidateSettingsRequest(&SettingsRequest{Primary: []int64{42}}, cats)
	assert.ErrorIs(t, err, internal.ErrValidation)
	assert.Contains(t, err.Error(), "unknown category 42")

	err = ValidateSettingsRequest(&SettingsRequest{Primary: []int64{1}, Hidden: []int64{1}}, cats)
	assert.ErrorIs(t, err, internal.ErrValidation)
	assert.Contains(t, err.Error(), "both primary and hidden")

	assert.ErrorIs(t, ValidateSettingsRequest(&SettingsRequest{Secondary: []int64{0}}, cats), internal.ErrValidation)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFileFixture(t)
	ctx := f.ctx

	empty, err := GetSettings(ctx, f.store, f.worker.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty.Primary)
	assert.Empty(t, empty.Primary)

	req := &SettingsRequest{
		Primary:   []int64{f.cat("Code")},
		Secondary: []int64{f.cat("Email")},
		Hidden:    []int64{f.cat("Meeting")},
	}
	_, err = SaveSettings(ctx, f.store, f.worker.ID, req, f.sessions.Now())
	require.NoError(t, err)

	layout, err := ResolveWorkerLayout(ctx, f.store, f.worker)
	require.NoError(t, err)
	assert.Equal(t, []string{"Code"}, names(layout.Primary))
	assert.Equal(t, []string{"Email"}, names(layout.Secondary))

	adminLayout, err := ResolveWorkerLayout(ctx, f.store, f.admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Meeting"}, names(adminLayout.Primary))

	_, err = SaveSettings(ctx, f.store, f.worker.ID, &SettingsRequest{Primary: []int64{777}}, f.sessions.Now())
	assert.ErrorIs(t, err, internal.ErrValidation)

	saved, err := GetSettings(ctx, f.store, f.worker.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.cat("Code")}, saved.Primary, "rejected save keeps the previous layout")
}
