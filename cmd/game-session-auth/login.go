package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/deviceflow"
	"github.com/wrale/game-session-auth/internal/login"
)

const defaultBundlePath = "account.json"

var errMissingRedirect = errors.New("--redirect-uri or REDIRECT_URI is required")

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and write a new credential bundle",
	}
	cmd.AddCommand(
		newLoginURLCmd(a),
		newLoginCodeCmd(a),
		newLoginDeviceCmd(a),
	)
	return cmd
}

func newLoginURLCmd(a *app) *cobra.Command {
	var redirectURI, state string
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the URL a browser opens to sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(a.cfg, a.logger)
			if err != nil {
				return err
			}
			redirectURI = firstNonEmpty(redirectURI, a.cfg.RedirectURI)
			if redirectURI == "" {
				return errMissingRedirect
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.identity.LoginURL(redirectURI, state))
			return nil
		},
	}
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI registered for the client")
	cmd.Flags().StringVar(&state, "state", "", "opaque value echoed back to the redirect URI")
	return cmd
}

func newLoginCodeCmd(a *app) *cobra.Command {
	var code, redirectURI, out string
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Redeem an authorization code from the redirect URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(a.cfg, a.logger)
			if err != nil {
				return err
			}
			strategy := login.RedirectCode{
				Client:      svc.identity,
				Code:        code,
				RedirectURI: firstNonEmpty(redirectURI, a.cfg.RedirectURI),
			}
			return a.login(cmd.Context(), cmd.OutOrStdout(), svc, strategy, out)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "authorization code")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI the code was issued for")
	cmd.Flags().StringVar(&out, "out", defaultBundlePath, "where to write the credential bundle")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newLoginDeviceCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Sign in with a code entered on another device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(a.cfg, a.logger)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			strategy := login.DeviceCode{
				Poller: svc.poller,
				Logger: a.logger,
				Prompt: func(s *deviceflow.Session) {
					if s.Message != "" {
						fmt.Fprintln(w, s.Message)
						return
					}
					fmt.Fprintf(w, "Open %s and enter the code %s\n", s.VerificationURI, s.UserCode)
				},
			}
			return a.login(cmd.Context(), w, svc, strategy, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", defaultBundlePath, "where to write the credential bundle")
	return cmd
}

// login authorizes with strategy, runs the full exchange and saves the bundle
func (a *app) login(ctx context.Context, w io.Writer, svc *services, strategy login.Strategy, out string) error {
	token, err := strategy.Authorize(ctx)
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}
	bundle, err := svc.accounts.Create(ctx, token)
	if err != nil {
		return err
	}
	if err := account.Save(out, bundle); err != nil {
		return err
	}
	fmt.Fprintf(w, "Signed in. Game session valid until %s, saved to %s\n",
		bundle.GameSession.ExpiresAt.Format(timeLayout), out)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
