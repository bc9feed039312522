package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/cli"
	"github.com/agentdeck/agentdeck/config"
	"github.com/agentdeck/agentdeck/git"
	"github.com/agentdeck/agentdeck/internal/pidfile"
	"github.com/agentdeck/agentdeck/internal/reconcile"
	"github.com/agentdeck/agentdeck/internal/registry"
	"github.com/agentdeck/agentdeck/internal/server"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/token"
	"github.com/agentdeck/agentdeck/logging"
	"github.com/agentdeck/agentdeck/pkg/paths"
)

// NewServeCmd returns the daemon command with subcommands.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agentdeck daemon",
		Long:  "Manage the daemon that serves the project console and terminal sessions.",
	}

	cmd.AddCommand(newServeStartCmd())
	cmd.AddCommand(newServeStopCmd())
	cmd.AddCommand(newServeStatusCmd())

	return cmd
}

func newServeStartCmd() *cobra.Command {
	var listenFlag string

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("agentdeck")
			pidPath := paths.PidFilePath()

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to prepare state directories: %w", err)
			}
			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			cfg, err := config.Load(config.DefaultPath())
			if err != nil {
				return err
			}
			if cli.FlagChanged(cmd, "listen") {
				cfg.Listen = listenFlag
			}

			reg, err := registry.Open(paths.ProjectStorePath())
			if err != nil {
				return err
			}

			codec, err := token.NewCodec(cfg.Token.TTL)
			if err != nil {
				return err
			}

			sessions := session.NewManager(cmd.Context(), cfg.Sessions, cfg.SandboxRoots)
			sessions.Start()

			trees := reconcile.New(reg, git.NewWorktreeManager())
			srv := server.New(reg, trees, sessions, codec)

			// Pick up config edits without a restart. Logging and session
			// policy apply live; the listen address needs a new start.
			watcher, err := config.NewWatcher(0, func(updated *config.Config) {
				logging.Reconfigure(updated.Logging)
				sessions.SetPolicy(updated.Sessions)
			})
			if err != nil {
				logger.WithError(err).Warn("Config watcher unavailable")
			} else {
				go watcher.Start(cmd.Context())
				defer watcher.Close()
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
				if err := reg.Save(); err != nil {
					logger.Errorf("Failed to persist project store: %v", err)
				}
				_ = pidfile.Release(pidPath)
				os.Exit(0)
			}()

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(cfg.Listen); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	start.Flags().StringVar(&listenFlag, "listen", "", "Listen address (overrides config)")
	return start
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newServeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			if running {
				fmt.Printf("Running (PID: %d)\n", pid)
			} else {
				fmt.Println("Stopped")
				os.Exit(1)
			}
			return nil
		},
	}
}
