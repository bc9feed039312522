package main

import (
	"os"

	"github.com/agentdeck/agentdeck/cli"
	"github.com/agentdeck/agentdeck/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"agentdeck",
		"Operations console for git worktrees and coding-agent terminal sessions",
	)

	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewProjectsCmd())
	rootCmd.AddCommand(cmd.NewWorktreesCmd())
	rootCmd.AddCommand(cmd.NewSessionsCmd())
	rootCmd.AddCommand(cmd.NewToolsCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		handler := cli.NewErrorHandler(false)
		_ = handler.Handle(err)
		os.Exit(1)
	}
}
