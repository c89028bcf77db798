package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

type Layout struct {
	Primary   []internal.Category `json:"primary"`
	Secondary []internal.Category `json:"secondary"`
}

type SettingsRequest struct {
	Primary   []int64 `json:"primary" validate:"dive,gt=0"`
	Secondary []int64 `json:"secondary" validate:"dive,gt=0"`
	Hidden    []int64 `json:"hidden" validate:"dive,gt=0"`
}

type layoutStore interface {
	storage.CategoryRepository
	storage.PreferenceRepository
}

func sortByPriority(cats []internal.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Priority != cats[j].Priority {
			return cats[i].Priority < cats[j].Priority
		}
		return cats[i].ID < cats[j].ID
	})
}

// isSecondary treats an unset default list as secondary.
func isSecondary(c internal.Category) bool {
	return c.DefaultList != internal.ListPrimary && c.DefaultList != internal.ListHidden
}

func defaultLayout(cats []internal.Category, systemOnly bool) (primary, secondary []internal.Category) {
	primary, secondary = []internal.Category{}, []internal.Category{}
	for _, c := range cats {
		if systemOnly && c.Kind != internal.CategorySystem {
			continue
		}
		switch {
		case c.DefaultList == internal.ListPrimary:
			primary = append(primary, c)
		case isSecondary(c):
			secondary = append(secondary, c)
		}
	}
	return primary, secondary
}

// ResolveLayout computes the button layout a worker sees. Admins always get
// the category defaults. A worker without a saved layout gets the SYSTEM
// defaults. Otherwise the saved order is kept and SYSTEM categories missing
// from it (and not hidden) are appended in priority order.
func ResolveLayout(categories []internal.Category, pref *internal.WorkerPreference, role internal.Role) (primary, secondary []internal.Category) {
	cats := append([]internal.Category(nil), categories...)
	sortByPriority(cats)

	if role == internal.RoleAdmin {
		return defaultLayout(cats, false)
	}
	if pref == nil || (len(pref.Primary) == 0 && len(pref.Secondary) == 0) {
		return defaultLayout(cats, true)
	}

	byID := make(map[int64]internal.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	placed := make(map[int64]bool)
	pick := func(ids []int64) []internal.Category {
		out := []internal.Category{}
		for _, id := range ids {
			c, ok := byID[id]
			if !ok || placed[id] {
				continue
			}
			placed[id] = true
			out = append(out, c)
		}
		return out
	}
	primary = pick(pref.Primary)
	secondary = pick(pref.Secondary)

	hidden := make(map[int64]bool, len(pref.Hidden))
	for _, id := range pref.Hidden {
		hidden[id] = true
	}
	for _, c := range cats {
		if c.Kind != internal.CategorySystem || placed[c.ID] || hidden[c.ID] {
			continue
		}
		switch {
		case c.DefaultList == internal.ListPrimary:
			primary = append(primary, c)
		case isSecondary(c):
			secondary = append(secondary, c)
		}
	}
	return primary, secondary
}

// ResolveWorkerLayout loads categories and the saved preference and resolves them.
func ResolveWorkerLayout(ctx context.Context, store layoutStore, worker *internal.Worker) (*Layout, error) {
	cats, err := store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	var pref *internal.WorkerPreference
	if !worker.IsAdmin() {
		if pref, err = store.GetPreference(ctx, worker.ID); err != nil {
			return nil, err
		}
	}
	primary, secondary := ResolveLayout(cats, pref, worker.Role)
	return &Layout{Primary: primary, Secondary: secondary}, nil
}

// GetSettings returns the saved preference, or an empty one.
func GetSettings(ctx context.Context, store storage.PreferenceRepository, workerID int64) (*internal.WorkerPreference, error) {
	pref, err := store.GetPreference(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = &internal.WorkerPreference{WorkerID: workerID}
	}
	if pref.Primary == nil {
		pref.Primary = []int64{}
	}
	if pref.Secondary == nil {
		pref.Secondary = []int64{}
	}
	if pref.Hidden == nil {
		pref.Hidden = []int64{}
	}
	return pref, nil
}

// ValidateSettingsRequest rejects unknown ids and any id listed twice.
func ValidateSettingsRequest(req *SettingsRequest, categories []internal.Category) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrValidation, err)
	}
	known := make(map[int64]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	seen := make(map[int64]string)
	lists := []struct {
		name string
		ids  []int64
	}{{"primary", req.Primary}, {"secondary", req.Secondary}, {"hidden", req.Hidden}}
	for _, l := range lists {
		name := l.name
		for _, id := range l.ids {
			if !known[id] {
				return fmt.Errorf("%w: unknown category %d in %s", internal.ErrValidation, id, name)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: category %d listed in both %s and %s", internal.ErrValidation, id, prev, name)
			}
			seen[id] = name
		}
	}
	return nil
}

func SaveSettings(ctx context.Context, store layoutStore, workerID int64, req *SettingsRequest, now time.Time) (*internal.WorkerPreference, error) {
	cats, err := store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateSettingsRequest(req, cats); err != nil {
		return nil, err
	}
	pref := &internal.WorkerPreference{
		WorkerID:  workerID,
		Primary:   append([]int64{}, req.Primary...),
		Secondary: append([]int64{}, req.Secondary...),
		Hidden:    append([]int64{}, req.Hidden...),
		UpdatedAt: now,
	}
	if err := store.SavePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}
