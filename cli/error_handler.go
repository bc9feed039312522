package cli

import (
	"fmt"
	"os"

	"github.com/agentdeck/agentdeck/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeGlobalCapacity, errors.ErrCodeProjectCapacity:
		fmt.Fprintf(os.Stderr, "❌ Too many live sessions. Close some sessions and retry.\n")
		return err

	case errors.ErrCodeSandboxViolation:
		if deckErr, ok := err.(*errors.DeckError); ok {
			fmt.Fprintf(os.Stderr, "❌ Working directory '%v' is outside the allowed roots\n", deckErr.Details["path"])
		}
		fmt.Fprintf(os.Stderr, "Sessions may only run under your home or temp directory.\n")
		return err

	case errors.ErrCodeToolUnavailable:
		if deckErr, ok := err.(*errors.DeckError); ok {
			fmt.Fprintf(os.Stderr, "❌ Tool '%v' is not installed on this host\n", deckErr.Details["tool"])
		}
		fmt.Fprintf(os.Stderr, "Run 'agentdeck tools' to see which tools were detected.\n")
		return err

	case errors.ErrCodeProjectNotFound:
		fmt.Fprintf(os.Stderr, "❌ Project not found. Run 'agentdeck projects' to see registered projects.\n")
		return err

	case errors.ErrCodeDefaultWorktree:
		fmt.Fprintf(os.Stderr, "❌ The default worktree cannot be removed.\n")
		return err

	case errors.ErrCodeGitFailed:
		if deckErr, ok := err.(*errors.DeckError); ok {
			fmt.Fprintf(os.Stderr, "❌ Git operation '%v' failed\n", deckErr.Details["operation"])
		}
		return err

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)

		if h.Verbose {
			if deckErr, ok := err.(*errors.DeckError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", deckErr.ToJSON())
			}
		}
		return err
	}
}
