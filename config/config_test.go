package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultTemplateWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "touch_config.toml")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "127.0.0.1:7070", cfg.TCPSocket)
	require.Equal(t, 100, cfg.MaxConnections)
	require.Equal(t, uint8(1), cfg.LogLevel)
	require.Equal(t, uint32(30), cfg.BackgroundMergeAvailableUnder)
	require.Equal(t, "127.0.0.1:9070", cfg.MetricsAddr)

	info, err := os.Stat(cfg.StorageDirectory)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	storageDir := filepath.Join(dir, "data")
	contents := `
storage_directory = "` + storageDir + `"
tcp_socket = "0.0.0.0:9000"
max_connections = 5
log_level = 3
background_merge_available_under = 10
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.TCPSocket)
	require.Equal(t, 5, cfg.MaxConnections)
	require.Equal(t, uint8(3), cfg.LogLevel)
	require.Equal(t, storageDir, cfg.StorageDirectory)

	info, err := os.Stat(storageDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLevelMapping(t *testing.T) {
	require.NotNil(t, (&Config{LogLevel: 1}).Level())
	require.NotNil(t, (&Config{LogLevel: 2}).Level())
	require.NotNil(t, (&Config{LogLevel: 3}).Level())
	require.NotNil(t, (&Config{LogLevel: 0}).Level())
}
