// Package reconcile merges live git worktree listings with the metadata
// records held by the project registry, self-healing drift between the
// two. The registry stays the source of truth for identity and titles;
// git stays the source of truth for which worktrees actually exist.
package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/git"
	"github.com/agentdeck/agentdeck/internal/registry"
	"github.com/agentdeck/agentdeck/logging"
	"github.com/agentdeck/agentdeck/util/pathutil"
	"github.com/agentdeck/agentdeck/util/sanitize"
)

// Worktree is a derived, per-listing view of one on-disk worktree merged
// with its metadata record. It is never persisted.
type Worktree struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	RelPath      string `json:"relPath"`
	Title        string `json:"title"`
	Branch       string `json:"branch,omitempty"`
	Head         string `json:"head,omitempty"`
	IsPrimary    bool   `json:"isPrimary"`
	Detached     bool   `json:"detached"`
	Locked       bool   `json:"locked"`
	LockedReason string `json:"lockedReason,omitempty"`
}

// Reconciler produces consistent worktree listings for registered projects
// and owns worktree create/remove operations.
type Reconciler struct {
	reg    *registry.Registry
	trees  git.WorktreeProvider
	logger *logrus.Entry
}

func New(reg *registry.Registry, trees git.WorktreeProvider) *Reconciler {
	return &Reconciler{
		reg:    reg,
		trees:  trees,
		logger: logging.NewLogger("reconcile"),
	}
}

// List returns the reconciled worktree view for a project. Prunable
// entries trigger a best-effort prune-and-relist, stale metadata is
// deleted, and missing metadata is synthesized; any registry changes are
// saved before returning.
func (r *Reconciler) List(ctx context.Context, projectID string) ([]Worktree, error) {
	project, err := r.reg.Get(projectID)
	if err != nil {
		return nil, err
	}

	entries, err := r.trees.ListWorktrees(ctx, project.Path)
	if err != nil {
		return nil, err
	}

	if hasPrunable(entries) {
		if err := r.trees.PruneWorktrees(ctx, project.Path); err != nil {
			r.logger.WithError(err).WithField("project", projectID).
				Warn("Worktree prune failed, continuing with current listing")
		} else if relisted, err := r.trees.ListWorktrees(ctx, project.Path); err == nil {
			entries = relisted
		}
	}

	projectReal := pathutil.RealPath(project.Path)
	live := make([]Worktree, 0, len(entries))
	livePaths := make(map[string]bool)

	for _, entry := range entries {
		if entry.Prunable || entry.Bare {
			continue
		}
		if info, err := os.Stat(entry.Path); err != nil || !info.IsDir() {
			continue
		}

		rel := relativePath(project.Path, entry.Path)
		meta := r.matchOrCreateMeta(projectID, project, entry, rel)

		live = append(live, Worktree{
			ID:           meta.ID,
			Path:         entry.Path,
			RelPath:      rel,
			Title:        meta.Title,
			Branch:       entry.Branch,
			Head:         entry.Head,
			IsPrimary:    pathutil.RealPath(entry.Path) == projectReal,
			Detached:     entry.Detached,
			Locked:       entry.Locked,
			LockedReason: entry.LockedReason,
		})
		livePaths[meta.Path] = true
		livePaths[entry.Path] = true
	}

	r.cleanupOrphans(projectID, livePaths)

	if err := r.reg.Save(); err != nil {
		return nil, err
	}
	return live, nil
}

// matchOrCreateMeta finds the metadata record for a live entry, correcting
// the stored path when it matched only via symlink resolution, or
// synthesizes and persists a new record when nothing matches.
func (r *Reconciler) matchOrCreateMeta(projectID string, project *registry.Project, entry git.WorktreeInfo, rel string) *registry.WorktreeMeta {
	for i := range project.Worktrees {
		if project.Worktrees[i].Path == entry.Path {
			return r.applyTitle(projectID, &project.Worktrees[i], suggestedTitle(entry, rel))
		}
	}

	entryReal := pathutil.RealPath(entry.Path)
	for i := range project.Worktrees {
		meta := &project.Worktrees[i]
		if pathutil.RealPath(meta.Path) == entryReal || meta.Path == entryReal {
			if meta.ID != registry.DefaultWorktreeID {
				if err := r.reg.UpdateWorktreeMeta(projectID, meta.ID, entry.Path, ""); err == nil {
					meta.Path = entry.Path
				}
			}
			return r.applyTitle(projectID, meta, suggestedTitle(entry, rel))
		}
	}

	title := suggestedTitle(entry, rel)
	meta, err := r.reg.AddWorktreeMeta(projectID, entry.Path, title)
	if err != nil {
		r.logger.WithError(err).WithField("path", entry.Path).
			Warn("Failed to synthesize worktree metadata")
		return &registry.WorktreeMeta{ID: sanitize.Slug(title), Path: entry.Path, Title: title}
	}
	// Keep the in-memory snapshot consistent for dedup within this pass.
	project.Worktrees = append(project.Worktrees, *meta)
	return meta
}

// applyTitle upgrades a placeholder title to a friendlier suggestion. A
// user-chosen title is never overwritten: the existing one must itself
// look machine-generated, and the incoming one must not.
func (r *Reconciler) applyTitle(projectID string, meta *registry.WorktreeMeta, suggested string) *registry.WorktreeMeta {
	if suggested == "" || suggested == meta.Title {
		return meta
	}
	if looksSluggy(meta.Title, meta.ID, meta.Path) && !looksSluggy(suggested, meta.ID, meta.Path) {
		if err := r.reg.UpdateWorktreeMeta(projectID, meta.ID, "", suggested); err == nil {
			meta.Title = suggested
		}
	}
	return meta
}

func (r *Reconciler) cleanupOrphans(projectID string, livePaths map[string]bool) {
	project, err := r.reg.Get(projectID)
	if err != nil {
		return
	}
	for _, meta := range project.Worktrees {
		if meta.ID == registry.DefaultWorktreeID {
			continue
		}
		if livePaths[meta.Path] || livePaths[pathutil.RealPath(meta.Path)] {
			continue
		}
		if err := r.reg.RemoveWorktreeMeta(projectID, meta.ID); err == nil {
			r.logger.WithFields(logrus.Fields{
				"project":  projectID,
				"worktree": meta.ID,
				"path":     meta.Path,
			}).Info("Removed orphaned worktree metadata")
		}
	}
}

// Create adds a new git worktree for the project and registers metadata
// for it. A relative path is resolved against the project root. A failed
// git invocation leaves no metadata behind.
func (r *Reconciler) Create(ctx context.Context, projectID, path, branch string, createBranch bool, baseRef, title string) (*Worktree, error) {
	project, err := r.reg.Get(projectID)
	if err != nil {
		return nil, err
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(project.Path, target)
	}
	target = filepath.Clean(target)

	if !createBranch {
		if err := r.trees.EnsureLocalBranch(ctx, project.Path, branch); err != nil {
			return nil, err
		}
	}
	if err := r.trees.AddWorktree(ctx, project.Path, target, branch, createBranch, baseRef); err != nil {
		return nil, err
	}

	if title == "" {
		title = branch
	}
	meta, err := r.reg.AddWorktreeMeta(projectID, target, title)
	if err != nil {
		return nil, err
	}
	if err := r.reg.Save(); err != nil {
		return nil, err
	}

	return &Worktree{
		ID:      meta.ID,
		Path:    target,
		RelPath: relativePath(project.Path, target),
		Title:   meta.Title,
		Branch:  branch,
	}, nil
}

// Remove deletes a worktree from disk and drops its metadata. The
// reserved default entry is always rejected.
func (r *Reconciler) Remove(ctx context.Context, projectID, worktreeID string, force bool) error {
	if worktreeID == registry.DefaultWorktreeID {
		return errors.New(errors.ErrCodeDefaultWorktree,
			"the default worktree cannot be removed")
	}

	project, err := r.reg.Get(projectID)
	if err != nil {
		return err
	}
	meta := project.Worktree(worktreeID)
	if meta == nil {
		return errors.WorktreeNotFound(worktreeID)
	}

	if _, statErr := os.Stat(meta.Path); statErr == nil {
		if err := r.trees.RemoveWorktree(ctx, project.Path, meta.Path, force); err != nil {
			return err
		}
	}

	if err := r.reg.RemoveWorktreeMeta(projectID, worktreeID); err != nil {
		return err
	}
	return r.reg.Save()
}

func hasPrunable(entries []git.WorktreeInfo) bool {
	for _, e := range entries {
		if e.Prunable {
			return true
		}
	}
	return false
}

func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// suggestedTitle derives a display title for a live entry: the branch
// name when present, else the path relative to the project root, else the
// directory's leaf name.
func suggestedTitle(entry git.WorktreeInfo, rel string) string {
	if entry.Branch != "" {
		return entry.Branch
	}
	if rel != "" && rel != "." && !filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Base(entry.Path)
}

// looksSluggy reports whether a title looks machine-generated rather than
// user-chosen: it equals the record's id, full path, or leaf name, equals
// its own slugified form, or contains path separators or underscores.
func looksSluggy(title, id, path string) bool {
	if title == "" {
		return true
	}
	if title == id || title == path || title == filepath.Base(path) {
		return true
	}
	if title == sanitize.Slug(title) {
		return true
	}
	return strings.ContainsAny(title, "/\\_")
}
