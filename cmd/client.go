package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/cli"
	"github.com/agentdeck/agentdeck/config"
	"github.com/agentdeck/agentdeck/internal/reconcile"
	"github.com/agentdeck/agentdeck/internal/registry"
	"github.com/agentdeck/agentdeck/internal/session"
)

// apiClient is a thin HTTP client against a running daemon.
type apiClient struct {
	base   string
	http   *http.Client
	logger *logrus.Logger
}

func newAPIClient(cmd *cobra.Command) (*apiClient, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	return &apiClient{
		base:   "http://" + cfg.Listen,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: cli.GetLogger(cmd),
	}, nil
}

func (c *apiClient) get(path string, out any) error {
	c.logger.WithField("url", c.base+path).Debug("Querying daemon")
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("daemon unreachable (is 'agentdeck serve start' running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned %s: %s", resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NewProjectsCmd lists the projects registered with the daemon.
func NewProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			var projects []registry.Project
			if err := client.get("/api/projects", &projects); err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(projects)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPATH\tWORKTREES")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Path, len(p.Worktrees))
			}
			return w.Flush()
		},
	}

	return cmd
}

// NewToolsCmd lists the coding-agent tools the daemon detected.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List detected coding-agent tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			var tools []session.Tool
			if err := client.get("/api/tools", &tools); err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(tools)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAVAILABLE\tVERSION")
			for _, tool := range tools {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", tool.ID, tool.Name, tool.Available, tool.Version)
			}
			return w.Flush()
		},
	}

	return cmd
}

// NewSessionsCmd lists live sessions.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			var sessions []session.Info
			if err := client.get("/api/sessions", &sessions); err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(sessions)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTOOL\tSTATUS\tPROJECT")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Tool, s.Status, s.ProjectID)
			}
			return w.Flush()
		},
	}

	return cmd
}

// NewWorktreesCmd lists the reconciled worktrees of a project.
func NewWorktreesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktrees <project-id>",
		Short: "List a project's worktrees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			var worktrees []reconcile.Worktree
			if err := client.get("/api/projects/"+args[0]+"/worktrees", &worktrees); err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(worktrees)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tBRANCH\tPRIMARY\tPATH")
			for _, wt := range worktrees {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", wt.ID, wt.Title, wt.Branch, wt.IsPrimary, wt.Path)
			}
			return w.Flush()
		},
	}

	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
