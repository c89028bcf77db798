package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

const sample = `
admin:
  uid: boss
categories:
  - name: Email
    priority: 1
    default_list: PRIMARY
  - name: Code
    priority: 2
    default_list: SECONDARY
  - name: Archive
    priority: 3
    default_list: HIDDEN
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeSeed(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "boss", f.Admin.UID)
	assert.Equal(t, "Administrator", f.Admin.Name)
	require.Len(t, f.Categories, 3)
	assert.Equal(t, internal.ListHidden, f.Categories[2].DefaultList)
}

func TestLoad_BundledFile(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "categories.yaml"))
	require.NoError(t, err)
	assert.Len(t, f.Categories, 9)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty name":   "categories:\n  - name: \"  \"\n",
		"duplicate":    "categories:\n  - name: A\n  - name: A\n",
		"unknown list": "categories:\n  - name: A\n    default_list: FAVORITE\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeSeed(t, body))
			assert.ErrorIs(t, err, internal.ErrValidation)
		})
	}

	_, err := Load(writeSeed(t, "categories: [unclosed"))
	assert.Error(t, err)
}

func TestApply_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileStorage(t.TempDir(), internal.NopLogger())
	require.NoError(t, err)
	defer store.Close()

	f, err := Load(writeSeed(t, sample))
	require.NoError(t, err)
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	res, err := Apply(ctx, store, f, now, internal.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.CreatedCategories)
	assert.Zero(t, res.UpdatedCategories)
	assert.Equal(t, internal.RoleAdmin, res.Admin.Role)

	res, err = Apply(ctx, store, f, now.Add(time.Hour), internal.NopLogger())
	require.NoError(t, err)
	assert.Zero(t, res.CreatedCategories)
	assert.Zero(t, res.UpdatedCategories)

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	for _, c := range cats {
		assert.Equal(t, internal.CategorySystem, c.Kind)
		assert.True(t, c.UpdatedAt.Equal(now))
	}

	f.Categories[1].DefaultList = internal.ListPrimary
	res, err = Apply(ctx, store, f, now.Add(2*time.Hour), internal.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCategories)

	workers, err := store.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Len(t, workers, 1)
}
