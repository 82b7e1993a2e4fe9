// Command game-session-auth signs a user in through the identity platform,
// exchanges the result for a game session token and keeps it fresh. It runs
// as a CLI or as an HTTP server for launchers.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrale/game-session-auth/internal/logging"
)

// Version is set by the build process
var Version = "dev"

// app carries state resolved before any subcommand runs
type app struct {
	cfg    Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "game-session-auth",
		Short:         "Obtain and refresh game session tokens",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.Config{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newLoginCmd(a),
		newRefreshCmd(a),
	)
	return root
}
