package git

import "context"

// WorktreeProvider defines the interface for git worktree operations
type WorktreeProvider interface {
	ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error)
	PruneWorktrees(ctx context.Context, repoPath string) error
	AddWorktree(ctx context.Context, repoPath, worktreePath, branch string, createBranch bool, baseRef string) error
	RemoveWorktree(ctx context.Context, repoPath, worktreePath string, force bool) error
	EnsureLocalBranch(ctx context.Context, repoPath, branch string) error
}
