package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "projects.json")
	r, err := Open(storePath)
	require.NoError(t, err)
	return r, storePath
}

func TestAddProjectIdempotent(t *testing.T) {
	r, _ := openTestRegistry(t)
	dir := t.TempDir()

	p1, err := r.AddProject(dir, "My Project")
	require.NoError(t, err)

	p2, err := r.AddProject(dir, "Renamed")
	require.NoError(t, err)

	assert.Equal(t, p1.ID, p2.ID, "same path must yield the same project id")
	assert.Equal(t, "Renamed", p2.Name)
	assert.Len(t, r.List(), 1)

	// The default worktree is not duplicated.
	count := 0
	for _, wt := range p2.Worktrees {
		if wt.ID == DefaultWorktreeID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAddProjectRejectsNonDirectory(t *testing.T) {
	r, _ := openTestRegistry(t)

	_, err := r.AddProject(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)
}

func TestDefaultWorktreeInvariant(t *testing.T) {
	r, _ := openTestRegistry(t)
	dir := t.TempDir()

	p, err := r.AddProject(dir, "")
	require.NoError(t, err)

	def := p.DefaultWorktree()
	require.NotNil(t, def)
	assert.Equal(t, p.Path, def.Path)
	assert.Equal(t, DefaultWorktreeTitle, def.Title)

	// Removal of the default entry is rejected regardless of anything.
	err = r.RemoveWorktreeMeta(p.ID, DefaultWorktreeID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDefaultWorktree, errors.GetCode(err))

	// Its title is fixed.
	require.NoError(t, r.UpdateWorktreeMeta(p.ID, DefaultWorktreeID, "", "sneaky"))
	p, err = r.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorktreeTitle, p.DefaultWorktree().Title)
}

func TestWorktreeMetaSlugCollision(t *testing.T) {
	r, _ := openTestRegistry(t)
	p, err := r.AddProject(t.TempDir(), "")
	require.NoError(t, err)

	a, err := r.AddWorktreeMeta(p.ID, "/tmp/a", "Feature Work")
	require.NoError(t, err)
	b, err := r.AddWorktreeMeta(p.ID, "/tmp/b", "Feature Work")
	require.NoError(t, err)
	c, err := r.AddWorktreeMeta(p.ID, "/tmp/c", "Feature Work")
	require.NoError(t, err)

	assert.Equal(t, "feature-work", a.ID)
	assert.Equal(t, "feature-work-2", b.ID)
	assert.Equal(t, "feature-work-3", c.ID)
}

func TestRemoveWorktreeMeta(t *testing.T) {
	r, _ := openTestRegistry(t)
	p, err := r.AddProject(t.TempDir(), "")
	require.NoError(t, err)

	meta, err := r.AddWorktreeMeta(p.ID, "/tmp/wt", "feat")
	require.NoError(t, err)

	require.NoError(t, r.RemoveWorktreeMeta(p.ID, meta.ID))

	p, err = r.Get(p.ID)
	require.NoError(t, err)
	assert.Nil(t, p.Worktree(meta.ID))

	err = r.RemoveWorktreeMeta(p.ID, meta.ID)
	assert.Equal(t, errors.ErrCodeWorktreeNotFound, errors.GetCode(err))
}

func TestSaveAndReload(t *testing.T) {
	r, storePath := openTestRegistry(t)
	dir := t.TempDir()

	p, err := r.AddProject(dir, "Persisted")
	require.NoError(t, err)
	_, err = r.AddWorktreeMeta(p.ID, "/tmp/wt", "feat")
	require.NoError(t, err)
	require.NoError(t, r.Save())

	reloaded, err := Open(storePath)
	require.NoError(t, err)

	got, err := reloaded.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Name)
	assert.Len(t, got.Worktrees, 2)
}

func TestSaveSkipsWhenClean(t *testing.T) {
	r, storePath := openTestRegistry(t)
	_, err := r.AddProject(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, r.Save())

	before, err := os.Stat(storePath)
	require.NoError(t, err)

	// No changes since last save: the file must not be rewritten.
	require.NoError(t, r.Save())
	after, err := os.Stat(storePath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestOpenCorruptStore(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "projects.json")
	require.NoError(t, os.WriteFile(storePath, []byte("{not json"), 0644))

	_, err := Open(storePath)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStore, errors.GetCode(err))
}

func TestUpdateSettingsClampsCharLimit(t *testing.T) {
	r, _ := openTestRegistry(t)
	p, err := r.AddProject(t.TempDir(), "")
	require.NoError(t, err)

	got, err := r.UpdateSettings(p.ID, Settings{AutoPrompt: true, CharLimit: 50})
	require.NoError(t, err)
	assert.Equal(t, MinCharLimit, got.Settings.CharLimit)

	got, err = r.UpdateSettings(p.ID, Settings{CharLimit: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, MaxCharLimit, got.Settings.CharLimit)
}
