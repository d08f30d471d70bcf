package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirDefaultsToHome(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".wppilot", "sessions", "main"), Dir("main"))
}

func TestPathsUnderOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)

	assert.Equal(t, filepath.Join(base, "sessions", "test", "daemon.sock"), SocketPath("test"))
	assert.Equal(t, filepath.Join(base, "sessions", "test", "LOCK"), LockPath("test"))
	assert.Equal(t, filepath.Join(base, "sessions", "test", "profile"), ProfileDir("test"))
	assert.Equal(t, filepath.Join(base, "sessions", "test", "wppilot.db"), AppDBPath("test"))
	assert.Equal(t, filepath.Join(base, "sessions", "test", "logs", "wppd.log"), LogPath("test"))
	assert.Equal(t, filepath.Join(base, "config.toml"), ConfigPath())
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	require.NoError(t, EnsureDir("test"))

	for _, dir := range []string{Dir("test"), LogDir("test"), ProfileDir("test")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	}
}
