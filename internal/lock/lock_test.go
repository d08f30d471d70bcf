package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRecordsOwner(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	owner := readOwner(filepath.Join(dir, FileName))
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.False(t, owner.Since.IsZero())
	assert.Equal(t, filepath.Join(dir, FileName), l.Path())
}

func TestAcquireCreatesSessionDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions", "work")

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	assert.DirExists(t, dir)
}

func TestDoubleAcquireFails(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l1.Release() }()

	_, err = Acquire(dir)
	require.Error(t, err)

	var held *HeldError
	require.True(t, errors.As(err, &held), "got %T: %v", err, err)
	assert.Equal(t, os.Getpid(), held.PID)
	assert.Contains(t, held.Error(), "held by PID")
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.NoFileExists(t, filepath.Join(dir, FileName))

	l2, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestReleaseNilAndTwice(t *testing.T) {
	var nilLock *Lock
	assert.NoError(t, nilLock.Release())

	l, err := Acquire(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, l.Release())
	assert.NoError(t, l.Release())
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()

	_, held, err := Inspect(dir)
	require.NoError(t, err)
	assert.False(t, held, "no lock file")

	l, err := Acquire(dir)
	require.NoError(t, err)

	owner, held, err := Inspect(dir)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, os.Getpid(), owner.PID)

	require.NoError(t, l.Release())
	_, held, err = Inspect(dir)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestInspectStaleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("pid=999999\n"), 0600))

	_, held, err := Inspect(dir)
	require.NoError(t, err)
	assert.False(t, held)
}
