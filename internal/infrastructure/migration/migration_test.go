package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"add orders table":   "add_orders_table",
		"Add-Orders-Table":   "add_orders_table",
		"add__orders__table": "add_orders_table",
		"   spaces   ":       "spaces",
		"special!@#$chars":   "specialchars",
		"_leading trailing_": "leading_trailing",
		"tag audits v2":      "tag_audits_v2",
		"":                   "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, sanitizeName(in))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	mf, err := CreateMigration(dir, "add order index", now)
	require.NoError(t, err)
	assert.Equal(t, "20260304050607", mf.Version)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add order index\n")
	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260304050607_add_order_index"}, names)

	_, err = CreateMigration(dir, "add order index", now)
	assert.Error(t, err, "existing files are not overwritten")

	_, err = CreateMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestListMigrations_MissingDir(t *testing.T) {
	names, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	versions, err := EmbeddedVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000002"}, versions)

	for _, v := range []string{"000001_create_orders", "000002_create_tag_audits"} {
		up, err := embedded.ReadFile("sql/" + v + ".up.sql")
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(up), "CREATE TABLE"))
		_, err = embedded.ReadFile("sql/" + v + ".down.sql")
		require.NoError(t, err)
	}
}
