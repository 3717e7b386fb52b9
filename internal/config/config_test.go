package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigDir, "")
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.VaultID, cfg.VaultID)
	assert.Equal(t, want.Timeline, cfg.Timeline)
	assert.Equal(t, want.Store, cfg.Store)
	assert.Empty(t, cfg.Path)
}

func TestLoad_FileInStoreDir(t *testing.T) {
	t.Setenv(EnvConfigDir, "")
	dir := t.TempDir()
	path := writeConfig(t, dir, `
vaultId: personal
timeline:
  dayStart: "08:00"
  dayEnd: "18:30"
  snapMinutes: 30
store:
  reloadDelay: 2s
`)

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "personal", cfg.VaultID)
	assert.Equal(t, "08:00", cfg.Timeline.DayStart)
	assert.Equal(t, "18:30", cfg.Timeline.DayEnd)
	assert.Equal(t, 30, cfg.Timeline.SnapMinutes)
	assert.Equal(t, Default().Timeline.MinSlotMinutes, cfg.Timeline.MinSlotMinutes)
	assert.Equal(t, 2*time.Second, cfg.Store.ReloadDelay)
	assert.Equal(t, Default().Store.UIStateDebounce, cfg.Store.UIStateDebounce)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_ConfigDirFallbackAndEnvOverride(t *testing.T) {
	confDir := t.TempDir()
	writeConfig(t, confDir, "vaultId: from-file\n")
	t.Setenv(EnvConfigDir, confDir)
	t.Setenv("PLANBOARD_TIMELINE_DAYEND", "20:00")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.VaultID)
	assert.Equal(t, "20:00", cfg.Timeline.DayEnd)

	t.Setenv("PLANBOARD_VAULTID", "from-env")
	cfg, err = Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.VaultID)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvConfigDir, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")

	dir := t.TempDir()
	writeConfig(t, dir, "timeline:\n  dayStart: \"19:00\"\n  dayEnd: \"08:00\"\n")
	_, err = Load("", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	dir = t.TempDir()
	writeConfig(t, dir, "timeline:\n  snapMinutes: 90\n")
	_, err = Load("", dir)
	require.Error(t, err)

	dir = t.TempDir()
	writeConfig(t, dir, "vaultId: \"\"\n")
	_, err = Load("", dir)
	require.Error(t, err)
}

func TestStoreOptions(t *testing.T) {
	assert.Len(t, Default().StoreOptions(), 5)
}
