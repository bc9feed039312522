package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentdeck/agentdeck/command"
	"github.com/agentdeck/agentdeck/errors"
)

// WorktreeInfo contains information about a git worktree as reported by
// `git worktree list --porcelain`.
type WorktreeInfo struct {
	Path         string
	Branch       string
	Head         string
	Bare         bool
	Detached     bool
	Locked       bool
	LockedReason string
	Prunable     bool
}

// WorktreeManager manages git worktrees
type WorktreeManager struct {
	cmdBuilder *command.SafeBuilder
}

// Ensure it implements the interface
var _ WorktreeProvider = (*WorktreeManager)(nil)

// NewWorktreeManager creates a new worktree manager
func NewWorktreeManager() *WorktreeManager {
	return &WorktreeManager{
		cmdBuilder: command.NewSafeBuilder(),
	}
}

// ListWorktrees returns all worktrees for the repository at repoPath.
func (m *WorktreeManager) ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error) {
	cmd, err := m.cmdBuilder.Build(ctx, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to build command: %w", err)
	}

	execCmd := cmd.Exec()
	execCmd.Dir = repoPath

	output, err := execCmd.Output()
	if err != nil {
		return nil, errors.GitFailed("worktree list", err)
	}

	return parseWorktreeList(string(output)), nil
}

// PruneWorktrees removes stale worktree bookkeeping for the repository.
func (m *WorktreeManager) PruneWorktrees(ctx context.Context, repoPath string) error {
	cmd, err := m.cmdBuilder.Build(ctx, "git", "worktree", "prune")
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}

	execCmd := cmd.Exec()
	execCmd.Dir = repoPath

	if output, err := execCmd.CombinedOutput(); err != nil {
		return errors.GitFailed("worktree prune", err).WithDetail("output", string(output))
	}
	return nil
}

// AddWorktree creates a worktree at worktreePath. When createBranch is true a
// new branch named branch is created starting at baseRef (HEAD when empty);
// otherwise the existing branch is checked out. The path argument is always
// preceded by an explicit argument-list terminator so branch- or path-shaped
// input can never be parsed as a flag.
func (m *WorktreeManager) AddWorktree(ctx context.Context, repoPath, worktreePath, branch string, createBranch bool, baseRef string) error {
	if err := m.cmdBuilder.Validate("branchName", branch); err != nil {
		return errors.InvalidBranch(branch, err.Error())
	}
	if err := m.cmdBuilder.Validate("fileName", worktreePath); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid worktree path: %v", err))
	}

	args := []string{"worktree", "add"}
	if createBranch {
		args = append(args, "-b", branch)
		args = append(args, "--", worktreePath)
		if baseRef != "" {
			if err := m.cmdBuilder.Validate("gitRef", baseRef); err != nil {
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid base ref: %v", err))
			}
			args = append(args, baseRef)
		}
	} else {
		args = append(args, "--", worktreePath, branch)
	}

	cmd, err := m.cmdBuilder.Build(ctx, "git", args...)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}

	execCmd := cmd.Exec()
	execCmd.Dir = repoPath

	if output, err := execCmd.CombinedOutput(); err != nil {
		return errors.GitFailed("worktree add", err).WithDetail("output", string(output))
	}

	return nil
}

// RemoveWorktree removes the worktree at worktreePath.
func (m *WorktreeManager) RemoveWorktree(ctx context.Context, repoPath, worktreePath string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, "--", worktreePath)

	cmd, err := m.cmdBuilder.Build(ctx, "git", args...)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}

	execCmd := cmd.Exec()
	execCmd.Dir = repoPath

	if output, err := execCmd.CombinedOutput(); err != nil {
		return errors.GitFailed("worktree remove", err).WithDetail("output", string(output))
	}

	return nil
}

// EnsureLocalBranch makes sure branch exists locally. When only a
// remote-tracking counterpart exists it is fetched and a local tracking
// branch is created.
func (m *WorktreeManager) EnsureLocalBranch(ctx context.Context, repoPath, branch string) error {
	if err := m.cmdBuilder.Validate("branchName", branch); err != nil {
		return errors.InvalidBranch(branch, err.Error())
	}

	if LocalBranchExists(ctx, repoPath, branch) {
		return nil
	}

	remote, ok := RemoteForBranch(ctx, repoPath, branch)
	if !ok {
		return errors.New(errors.ErrCodeInvalidBranch,
			fmt.Sprintf("branch '%s' does not exist locally or on any remote", branch)).
			WithDetail("branch", branch)
	}

	// Fetch the remote branch, then create a local tracking branch.
	fetchCmd, err := m.cmdBuilder.Build(ctx, "git", "fetch", remote, branch)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}
	execCmd := fetchCmd.Exec()
	execCmd.Dir = repoPath
	if output, err := execCmd.CombinedOutput(); err != nil {
		return errors.GitFailed("fetch", err).WithDetail("output", string(output))
	}

	trackCmd, err := m.cmdBuilder.Build(ctx, "git", "branch", "--track", branch, remote+"/"+branch)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}
	execCmd = trackCmd.Exec()
	execCmd.Dir = repoPath
	if output, err := execCmd.CombinedOutput(); err != nil {
		return errors.GitFailed("branch --track", err).WithDetail("output", string(output))
	}

	return nil
}

// parseWorktreeList parses `git worktree list --porcelain` output. Entries
// are newline-separated blocks of attribute lines; flag attributes (bare,
// detached, locked, prunable) have no value, locked and prunable may carry a
// reason after a space.
func parseWorktreeList(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo

	var current WorktreeInfo
	var seen bool
	flush := func() {
		if seen && current.Path != "" {
			worktrees = append(worktrees, current)
		}
		current = WorktreeInfo{}
		seen = false
	}

	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			flush()
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			current.Path = value
			seen = true
		case "HEAD":
			current.Head = value
		case "branch":
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
		case "bare":
			current.Bare = true
		case "detached":
			current.Detached = true
		case "locked":
			current.Locked = true
			current.LockedReason = value
		case "prunable":
			current.Prunable = true
		}
	}
	flush()

	return worktrees
}
