package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrale/game-session-auth/internal/account"
)

const timeLayout = time.RFC3339

func newRefreshCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh an expired game session in a credential bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(a.cfg, a.logger)
			if err != nil {
				return err
			}
			bundle, err := account.Load(file)
			if err != nil {
				return err
			}

			refreshed, err := svc.accounts.EnsureFresh(cmd.Context(), bundle)
			if err != nil {
				return fmt.Errorf("refreshing %s: %w", file, err)
			}
			if refreshed {
				if err := account.Save(file, bundle); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Game session valid until %s (refreshed: %t)\n",
				bundle.GameSession.ExpiresAt.Format(timeLayout), refreshed)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", defaultBundlePath, "credential bundle to refresh")
	return cmd
}
