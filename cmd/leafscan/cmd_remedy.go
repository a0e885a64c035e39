package main

import (
	"errors"
	"fmt"

	"github.com/fpang/leafscan/internal/auth"
	"github.com/fpang/leafscan/internal/chat"
	"github.com/fpang/leafscan/internal/cli"
	"github.com/fpang/leafscan/internal/interpret"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func remedyCmd() *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "remedy <label>",
		Short: "Ask Gemini how to treat a disease",
		Long: `Asks Gemini for a short treatment for a classifier label such as
Tomato___Late_blight. Healthy labels are answered locally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]

			var models chat.ContentGenerator
			if !interpret.FormatLabel(label).Healthy {
				apiKey, err := auth.GetAPIKey()
				if err != nil {
					return errors.New(cli.RemedyMessage(err))
				}
				client, err := chat.NewGeminiClient(cmd.Context(), apiKey)
				if err != nil {
					return err
				}
				models = client.Models
			}

			remedy, err := chat.NewAdviser(models, cfg.GeminiModel).SuggestRemedy(cmd.Context(), label)
			if err != nil {
				log.Error().Err(err).Str("label", label).Msg("Remedy request failed")
				return errors.New(cli.RemedyMessage(err))
			}

			if html {
				rendered, err := interpret.RenderRemedy(remedy)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), rendered)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", interpret.FormatLabel(label), remedy)
			return nil
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "print the remedy rendered as HTML")
	cmd.Flags().String("model", chat.DefaultModelName, "Gemini model to use")
	return cmd
}
