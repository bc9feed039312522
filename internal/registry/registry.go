// Package registry persists project records to a JSON file and is the
// source of truth the worktree reconciler merges against.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/logging"
	"github.com/agentdeck/agentdeck/util/pathutil"
	"github.com/agentdeck/agentdeck/util/sanitize"
	"github.com/sirupsen/logrus"
)

// Registry owns the persisted project store. All mutation goes through its
// methods; writes are whole-file rewrites guarded by a dirty flag.
type Registry struct {
	mu       sync.Mutex
	path     string
	projects map[string]*Project
	dirty    bool
	logger   *logrus.Entry
}

type storeFile struct {
	Projects []*Project `json:"projects"`
}

// Open loads (or initializes) the registry backed by the JSON file at path.
func Open(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		projects: make(map[string]*Project),
		logger:   logging.NewLogger("registry"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStore, "failed to read project store").
			WithDetail("path", path)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStore, "project store is corrupted").
			WithDetail("path", path)
	}

	for _, p := range file.Projects {
		r.projects[p.ID] = p
	}
	return r, nil
}

// ProjectID derives the stable project id for a filesystem path. The id is a
// content-free hash of the canonicalized absolute path, so re-adding the
// same path always yields the same id.
func ProjectID(path string) string {
	canonical := pathutil.RealPath(path)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:12]
}

// AddProject registers a repository path, idempotently. Re-registering an
// existing path updates the name and touches last-accessed instead of
// duplicating the record.
func (r *Registry) AddProject(path, name string) (*Project, error) {
	abs, err := pathutil.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid project path")
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("project path %s is not a directory", abs))
	}

	if name == "" {
		name = filepath.Base(abs)
	}
	name = sanitize.ForTitle(name)

	id := ProjectID(abs)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.projects[id]; ok {
		existing.Name = name
		existing.Path = abs
		existing.LastAccessed = time.Now()
		if def := existing.DefaultWorktree(); def != nil {
			def.Path = abs
		}
		r.dirty = true
		return r.snapshotLocked(existing), nil
	}

	project := &Project{
		ID:           id,
		Name:         name,
		Path:         abs,
		LastAccessed: time.Now(),
		Worktrees: []WorktreeMeta{{
			ID:    DefaultWorktreeID,
			Path:  abs,
			Title: DefaultWorktreeTitle,
		}},
		Settings: Settings{CharLimit: DefaultCharLimit},
	}
	r.projects[id] = project
	r.dirty = true

	r.logger.WithFields(logrus.Fields{"project": id, "path": abs}).Info("Registered project")
	return r.snapshotLocked(project), nil
}

// Get returns a copy of the project with the given id.
func (r *Registry) Get(id string) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, errors.ProjectNotFound(id)
	}
	return r.snapshotLocked(p), nil
}

// List returns copies of all projects, most recently accessed first.
func (r *Registry) List() []*Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, r.snapshotLocked(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	return out
}

// Remove deletes a project record. The filesystem is untouched.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return errors.ProjectNotFound(id)
	}
	delete(r.projects, id)
	r.dirty = true
	return nil
}

// Touch updates a project's last-accessed timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.projects[id]; ok {
		p.LastAccessed = time.Now()
		r.dirty = true
	}
}

// UpdateSettings replaces a project's settings, clamping the char limit.
func (r *Registry) UpdateSettings(id string, settings Settings) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, errors.ProjectNotFound(id)
	}

	settings.CharLimit = ClampCharLimit(settings.CharLimit)
	p.Settings = settings
	r.dirty = true
	return r.snapshotLocked(p), nil
}

// AddWorktreeMeta creates a metadata record for a project worktree. The id
// is a slug of the title, disambiguated with a numeric suffix on collision.
func (r *Registry) AddWorktreeMeta(projectID, path, title string) (*WorktreeMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return nil, errors.ProjectNotFound(projectID)
	}

	title = sanitize.ForTitle(title)
	if title == "" {
		title = filepath.Base(path)
	}

	base := sanitize.Slug(title)
	if base == "" || base == DefaultWorktreeID {
		base = "worktree"
	}

	id := base
	for n := 2; p.Worktree(id) != nil; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}

	meta := WorktreeMeta{ID: id, Path: path, Title: title}
	p.Worktrees = append(p.Worktrees, meta)
	r.dirty = true
	return &meta, nil
}

// UpdateWorktreeMeta rewrites the path and/or title of a metadata record.
// The default entry's title is fixed and silently preserved.
func (r *Registry) UpdateWorktreeMeta(projectID, worktreeID, path, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return errors.ProjectNotFound(projectID)
	}

	meta := p.Worktree(worktreeID)
	if meta == nil {
		return errors.WorktreeNotFound(worktreeID)
	}

	if path != "" && path != meta.Path {
		meta.Path = path
		r.dirty = true
	}
	if title != "" && worktreeID != DefaultWorktreeID {
		title = sanitize.ForTitle(title)
		if title != meta.Title {
			meta.Title = title
			r.dirty = true
		}
	}
	return nil
}

// RemoveWorktreeMeta deletes a worktree metadata record. Removing the
// reserved default entry is always rejected.
func (r *Registry) RemoveWorktreeMeta(projectID, worktreeID string) error {
	if worktreeID == DefaultWorktreeID {
		return errors.New(errors.ErrCodeDefaultWorktree,
			"the default worktree cannot be removed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return errors.ProjectNotFound(projectID)
	}

	for i := range p.Worktrees {
		if p.Worktrees[i].ID == worktreeID {
			p.Worktrees = append(p.Worktrees[:i], p.Worktrees[i+1:]...)
			r.dirty = true
			return nil
		}
	}
	return errors.WorktreeNotFound(worktreeID)
}

// Save writes the store to disk if anything changed since the last save.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return nil
	}

	file := storeFile{Projects: make([]*Project, 0, len(r.projects))}
	for _, p := range r.projects {
		file.Projects = append(file.Projects, p)
	}
	sort.Slice(file.Projects, func(i, j int) bool {
		return file.Projects[i].ID < file.Projects[j].ID
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal project store")
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create store directory")
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write project store")
	}

	r.dirty = false
	return nil
}

// snapshotLocked deep-copies a project so callers never alias internal state.
func (r *Registry) snapshotLocked(p *Project) *Project {
	cp := *p
	cp.Worktrees = make([]WorktreeMeta, len(p.Worktrees))
	copy(cp.Worktrees, p.Worktrees)
	return &cp
}
