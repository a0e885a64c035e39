package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/cli"
	"github.com/fpang/leafscan/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the classifier and save the session",
		Long: `Prompts for email and password, signs in, and stores the returned token
in ~/.leafscan/session.json (readable only by you). Set LEAFSCAN_TOKEN to
use a token without saving it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := cli.PromptForCredentials(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			result, err := newClient().Login(cmd.Context(), email, password)
			if err != nil {
				msg := cli.LoginMessage(err)
				log.Error().Err(err).Msg(msg)
				return errors.New(msg)
			}

			store, err := session.DefaultStore()
			if err != nil {
				return err
			}
			sess := &session.Session{Token: result.Token, Name: result.Name, Email: email}
			if err := store.Save(sess); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			log.Info().Str("path", store.Path()).Msg("Session saved")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(sess))
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := session.DefaultStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			if os.Getenv(session.TokenEnvVar) != "" {
				log.Warn().Msgf("%s is still set and will keep being used", session.TokenEnvVar)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check the current session with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sess := loadSession()
			if sess == nil {
				return errors.New("not logged in, run: leafscan login")
			}

			email, err := newClient().VerifyToken(cmd.Context(), sess.Token)
			if err != nil {
				var statusErr *classifier.StatusError
				switch {
				case errors.As(err, &statusErr) && statusErr.StatusCode == 401:
					return errors.New("session expired, run: leafscan login")
				case errors.Is(err, classifier.ErrNetwork):
					return errors.New(cli.ServerNotResponding)
				default:
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), email)
			return nil
		},
	}
}

func displayName(s *session.Session) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}
