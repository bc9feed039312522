package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/agentdeck/agentdeck/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput represents the XDG-compliant paths used by agentdeck.
type PathsOutput struct {
	ConfigDir    string `json:"config_dir"`
	DataDir      string `json:"data_dir"`
	StateDir     string `json:"state_dir"`
	CacheDir     string `json:"cache_dir"`
	ProjectStore string `json:"project_store"`
	PidFile      string `json:"pid_file"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by agentdeck",
		Long: `Print the XDG-compliant paths used by agentdeck.

The paths follow the XDG Base Directory Specification:
- config_dir: Configuration files (agentdeck.yml)
- data_dir: Persistent data
- state_dir: Runtime state (project store, logs)
- cache_dir: Temporary/regenerable data
- project_store: The registered-projects JSON file
- pid_file: The daemon PID file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir:    paths.ConfigDir(),
				DataDir:      paths.DataDir(),
				StateDir:     paths.StateDir(),
				CacheDir:     paths.CacheDir(),
				ProjectStore: paths.ProjectStorePath(),
				PidFile:      paths.PidFilePath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		},
	}
}
