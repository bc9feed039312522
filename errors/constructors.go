package errors

import (
	"fmt"
	"os/exec"
)

// GlobalCapacityExceeded creates a global session ceiling error
func GlobalCapacityExceeded(limit int) *DeckError {
	return New(ErrCodeGlobalCapacity,
		fmt.Sprintf("maximum number of sessions (%d) reached, close a session before creating a new one", limit)).
		WithDetail("limit", limit)
}

// ProjectCapacityExceeded creates a per-project session ceiling error
func ProjectCapacityExceeded(projectID string, limit int) *DeckError {
	return New(ErrCodeProjectCapacity,
		fmt.Sprintf("maximum number of sessions (%d) reached for this project", limit)).
		WithDetail("project", projectID).
		WithDetail("limit", limit)
}

// SandboxViolation creates a working-directory sandbox error
func SandboxViolation(path string) *DeckError {
	return New(ErrCodeSandboxViolation,
		fmt.Sprintf("working directory %s is outside the allowed roots", path)).
		WithDetail("path", path)
}

// ToolUnsupported creates an error for a tool not on the allow-list
func ToolUnsupported(tool string) *DeckError {
	return New(ErrCodeToolUnsupported, fmt.Sprintf("tool '%s' is not supported", tool)).
		WithDetail("tool", tool)
}

// ToolUnavailable creates an error for an allow-listed tool missing on the host
func ToolUnavailable(tool string) *DeckError {
	return New(ErrCodeToolUnavailable,
		fmt.Sprintf("tool '%s' is not installed or not on PATH", tool)).
		WithDetail("tool", tool)
}

// SessionNotFound creates a session not found error
func SessionNotFound(sessionID string) *DeckError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", sessionID)).
		WithDetail("session", sessionID)
}

// ProjectNotFound creates a project not found error
func ProjectNotFound(projectID string) *DeckError {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project '%s' not found", projectID)).
		WithDetail("project", projectID)
}

// WorktreeNotFound creates a worktree not found error
func WorktreeNotFound(worktreeID string) *DeckError {
	return New(ErrCodeWorktreeNotFound, fmt.Sprintf("worktree '%s' not found", worktreeID)).
		WithDetail("worktree", worktreeID)
}

// InvalidBranch creates a malformed branch name error
func InvalidBranch(branch, reason string) *DeckError {
	return New(ErrCodeInvalidBranch,
		fmt.Sprintf("invalid branch name '%s': %s", branch, reason)).
		WithDetail("branch", branch)
}

// GitFailed wraps a git command failure
func GitFailed(op string, err error) *DeckError {
	deckErr := Wrap(err, ErrCodeGitFailed, fmt.Sprintf("git %s failed", op)).
		WithDetail("operation", op)

	if exitErr, ok := err.(*exec.ExitError); ok {
		deckErr = deckErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return deckErr
}

// SpawnFailed wraps a child process spawn failure
func SpawnFailed(tool string, err error) *DeckError {
	return Wrap(err, ErrCodeSpawnFailed, fmt.Sprintf("failed to start '%s'", tool)).
		WithDetail("tool", tool)
}
