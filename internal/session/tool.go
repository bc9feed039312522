package session

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// probeTimeout bounds each availability probe at startup.
const probeTimeout = 3 * time.Second

// Tool is one allow-listed interactive CLI a session may run. Sessions
// never execute caller-supplied commands; the command and base argument
// list are fixed here.
type Tool struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Command     string            `json:"command"`
	Args        []string          `json:"-"`
	Description string            `json:"description"`
	Env         map[string]string `json:"-"`
	Available   bool              `json:"available"`
	Version     string            `json:"version,omitempty"`
}

func builtinTools() []Tool {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	return []Tool{
		{
			ID:          "codex",
			Name:        "Codex",
			Command:     "codex",
			Description: "OpenAI Codex CLI",
		},
		{
			ID:          "claude",
			Name:        "Claude Code",
			Command:     "claude",
			Description: "Anthropic Claude Code CLI",
		},
		{
			ID:          "opencode",
			Name:        "OpenCode",
			Command:     "opencode",
			Description: "OpenCode CLI",
		},
		{
			ID:          "shell",
			Name:        "Shell",
			Command:     shell,
			Description: "Interactive login shell",
		},
	}
}

// probeTools checks each tool's availability by running its version flag
// with a short timeout. Probing happens once per process; a restart is
// the refresh mechanism.
func probeTools(ctx context.Context, tools []Tool, logger *logrus.Entry) []Tool {
	probed := make([]Tool, len(tools))
	for i, tool := range tools {
		probed[i] = tool
		probed[i].Available, probed[i].Version = probeTool(ctx, tool)
		logger.WithFields(logrus.Fields{
			"tool":      tool.ID,
			"available": probed[i].Available,
			"version":   probed[i].Version,
		}).Debug("Probed tool")
	}
	return probed
}

func probeTool(ctx context.Context, tool Tool) (bool, string) {
	if _, err := exec.LookPath(tool.Command); err != nil {
		return false, ""
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, tool.Command, "--version").Output()
	if err != nil {
		// On the PATH but the version probe failed; treat as available
		// with an unknown version rather than hiding the tool.
		return true, ""
	}

	version := strings.TrimSpace(string(out))
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	return true, version
}
