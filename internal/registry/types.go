package registry

import "time"

// DefaultWorktreeID is the reserved id of the worktree metadata entry that
// tracks the project root itself. Every project has exactly one, it cannot
// be renamed, and it cannot be removed.
const DefaultWorktreeID = "default"

// DefaultWorktreeTitle is the fixed title of the default worktree entry.
const DefaultWorktreeTitle = "Main"

// Character-limit bounds for project settings.
const (
	MinCharLimit     = 1000
	MaxCharLimit     = 20000
	DefaultCharLimit = 4000
)

// Settings holds tool-specific per-project configuration.
type Settings struct {
	AutoPrompt bool `json:"autoPrompt"`
	CharLimit  int  `json:"charLimit"`
}

// WorktreeMeta is the persisted record for one worktree of a project.
type WorktreeMeta struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Project is the persisted record for a registered repository.
type Project struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Path         string         `json:"path"`
	LastAccessed time.Time      `json:"lastAccessed"`
	Worktrees    []WorktreeMeta `json:"worktrees"`
	Settings     Settings       `json:"settings"`
}

// DefaultWorktree returns the project's reserved default worktree entry,
// or nil if the record is malformed.
func (p *Project) DefaultWorktree() *WorktreeMeta {
	for i := range p.Worktrees {
		if p.Worktrees[i].ID == DefaultWorktreeID {
			return &p.Worktrees[i]
		}
	}
	return nil
}

// Worktree returns the metadata entry with the given id, or nil.
func (p *Project) Worktree(id string) *WorktreeMeta {
	for i := range p.Worktrees {
		if p.Worktrees[i].ID == id {
			return &p.Worktrees[i]
		}
	}
	return nil
}

// ClampCharLimit forces a char-limit value into the allowed range.
func ClampCharLimit(v int) int {
	if v < MinCharLimit {
		return MinCharLimit
	}
	if v > MaxCharLimit {
		return MaxCharLimit
	}
	return v
}
