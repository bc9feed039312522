package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentdeck/agentdeck/command"
)

// IsGitRepo checks if the given directory is inside a git repository
func IsGitRepo(dir string) bool {
	cmdBuilder := command.NewSafeBuilder()
	cmd, err := cmdBuilder.Build(context.Background(), "git", "rev-parse", "--git-dir")
	if err != nil {
		return false
	}
	execCmd := cmd.Exec()
	execCmd.Dir = dir
	err = execCmd.Run()
	return err == nil
}

// GetGitRoot returns the root directory of the git repository
func GetGitRoot(dir string) (string, error) {
	cmdBuilder := command.NewSafeBuilder()
	cmd, err := cmdBuilder.Build(context.Background(), "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("failed to build command: %w", err)
	}
	execCmd := cmd.Exec()
	execCmd.Dir = dir
	output, err := execCmd.Output()
	if err != nil {
		return "", fmt.Errorf("get git root: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the checked-out branch name for dir, or an empty
// string when HEAD is detached.
func CurrentBranch(dir string) (string, error) {
	cmdBuilder := command.NewSafeBuilder()
	cmd, err := cmdBuilder.Build(context.Background(), "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to build command: %w", err)
	}
	execCmd := cmd.Exec()
	execCmd.Dir = dir
	output, err := execCmd.Output()
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// ResolveRef resolves a git ref (branch name, tag, or commit) to its full
// commit hash.
func ResolveRef(dir, ref string) (string, error) {
	cmdBuilder := command.NewSafeBuilder()
	if err := cmdBuilder.Validate("gitRef", ref); err != nil {
		return "", err
	}
	cmd, err := cmdBuilder.Build(context.Background(), "git", "rev-parse", ref)
	if err != nil {
		return "", fmt.Errorf("failed to build command: %w", err)
	}
	execCmd := cmd.Exec()
	execCmd.Dir = dir
	output, err := execCmd.Output()
	if err != nil {
		return "", fmt.Errorf("resolve ref %s: %w", ref, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// GetHeadCommit returns the current HEAD commit hash for a repository.
func GetHeadCommit(dir string) (string, error) {
	return ResolveRef(dir, "HEAD")
}

// LocalBranchExists reports whether branch exists as a local branch in the
// repository at dir.
func LocalBranchExists(ctx context.Context, dir, branch string) bool {
	cmdBuilder := command.NewSafeBuilder()
	cmd, err := cmdBuilder.Build(ctx, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil {
		return false
	}
	execCmd := cmd.Exec()
	execCmd.Dir = dir
	return execCmd.Run() == nil
}

// RemoteForBranch returns the name of the first remote carrying branch as a
// remote-tracking ref, and whether one was found.
func RemoteForBranch(ctx context.Context, dir, branch string) (string, bool) {
	cmdBuilder := command.NewSafeBuilder()
	cmd, err := cmdBuilder.Build(ctx, "git", "for-each-ref", "--format=%(refname:short)", "refs/remotes")
	if err != nil {
		return "", false
	}
	execCmd := cmd.Exec()
	execCmd.Dir = dir
	output, err := execCmd.Output()
	if err != nil {
		return "", false
	}

	for _, ref := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		remote, name, ok := strings.Cut(ref, "/")
		if ok && name == branch {
			return remote, true
		}
	}
	return "", false
}
