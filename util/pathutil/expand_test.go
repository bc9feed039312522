package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := Expand("~/projects")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "projects"), got)

	got, err = Expand("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	// Relative paths become absolute.
	got, err = Expand("somewhere")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestRealPathResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0755))

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	assert.Equal(t, RealPath(target), RealPath(link))
	assert.True(t, SamePath(target, link))
}

func TestRealPathNonexistentTail(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does", "not", "exist")

	got := RealPath(missing)
	assert.Equal(t, filepath.Join(RealPath(dir), "does", "not", "exist"), got)
}

func TestIsWithin(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	assert.True(t, IsWithin(sub, dir))
	assert.True(t, IsWithin(dir, dir))
	assert.False(t, IsWithin(dir, sub))
	assert.False(t, IsWithin("/etc", dir))

	// A symlink escaping the root must not count as within it.
	outside := t.TempDir()
	escape := filepath.Join(dir, "escape")
	require.NoError(t, os.Symlink(outside, escape))
	assert.False(t, IsWithin(escape, dir))
}
