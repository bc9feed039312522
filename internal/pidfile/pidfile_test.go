package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdeck.pid")

	require.NoError(t, Acquire(path))

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, pid, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, Release(path))
	running, _, err = IsRunning(path)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireRejectsLivePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdeck.pid")
	require.NoError(t, Acquire(path))

	err := Acquire(path)
	assert.Error(t, err, "second acquire against a live process must fail")
}

func TestAcquireReplacesStalePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdeck.pid")
	// A PID that is almost certainly not alive.
	require.NoError(t, os.WriteFile(path, []byte("999999"), 0644))

	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdeck.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, err := Read(path)
	assert.Error(t, err)

	_, parseErr := strconv.Atoi("not-a-pid")
	assert.IsType(t, parseErr, err)
}
