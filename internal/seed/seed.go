package seed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

type File struct {
	Admin struct {
		UID  string `yaml:"uid"`
		Name string `yaml:"name"`
	} `yaml:"admin"`
	Categories []CategorySeed `yaml:"categories"`
}

type CategorySeed struct {
	Name        string               `yaml:"name"`
	Priority    int                  `yaml:"priority"`
	DefaultList internal.DefaultList `yaml:"default_list"`
}

type Result struct {
	Admin             *internal.Worker
	CreatedCategories int
	UpdatedCategories int
}

type seedStore interface {
	storage.WorkerRepository
	storage.CategoryRepository
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding seed file %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	if f.Admin.UID == "" {
		f.Admin.UID = "admin"
	}
	if f.Admin.Name == "" {
		f.Admin.Name = "Administrator"
	}
	names := make(map[string]bool)
	for i, c := range f.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("%w: category %d has no name", internal.ErrValidation, i)
		}
		if names[name] {
			return fmt.Errorf("%w: category %q listed twice", internal.ErrValidation, name)
		}
		names[name] = true
		switch c.DefaultList {
		case "", internal.ListPrimary, internal.ListSecondary, internal.ListHidden:
		default:
			return fmt.Errorf("%w: category %q has unknown default_list %q", internal.ErrValidation, name, c.DefaultList)
		}
	}
	return nil
}

// Apply provisions the admin worker and upserts SYSTEM categories by name.
// Running it again with the same file changes nothing.
func Apply(ctx context.Context, store seedStore, f *File, now time.Time, logger internal.Logger) (*Result, error) {
	admin, err := store.GetOrCreateWorker(ctx, &internal.Worker{
		UID:       f.Admin.UID,
		Name:      f.Admin.Name,
		Role:      internal.RoleAdmin,
		Status:    internal.WorkerActive,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning admin: %w", err)
	}
	if !admin.IsAdmin() {
		logger.Warnf("seed: worker %q already exists with role %s", admin.UID, admin.Role)
	}

	existing, err := store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]internal.Category, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
	}

	res := &Result{Admin: admin}
	for _, s := range f.Categories {
		name := strings.TrimSpace(s.Name)
		cur, ok := byName[name]
		if !ok {
			c := &internal.Category{
				Name:        name,
				Kind:        internal.CategorySystem,
				Priority:    s.Priority,
				DefaultList: s.DefaultList,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := store.SaveCategory(ctx, c); err != nil {
				return nil, fmt.Errorf("creating category %q: %w", name, err)
			}
			res.CreatedCategories++
			continue
		}
		if cur.Priority == s.Priority && cur.DefaultList == s.DefaultList && cur.Kind == internal.CategorySystem {
			continue
		}
		cur.Priority = s.Priority
		cur.DefaultList = s.DefaultList
		cur.Kind = internal.CategorySystem
		cur.UpdatedAt = now
		if err := store.SaveCategory(ctx, &cur); err != nil {
			return nil, fmt.Errorf("updating category %q: %w", name, err)
		}
		res.UpdatedCategories++
	}
	logger.Infof("seed: admin %q, %d categories created, %d updated", admin.UID, res.CreatedCategories, res.UpdatedCategories)
	return res, nil
}
