package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fpang/leafscan/internal/auth"
	"github.com/fpang/leafscan/internal/chat"
	"github.com/fpang/leafscan/internal/cli"
	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/fpang/leafscan/internal/preview"
	"github.com/fpang/leafscan/internal/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	var (
		pick        bool
		explain     bool
		jsonOut     bool
		savePreview string
	)

	cmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: "Classify a leaf photo",
		Long: `Submits a leaf photo to the classifier and prints the predicted
condition, its confidence and the remedy returned by the server.

With --pick a native file dialog opens instead of taking a path. With
--explain, a disease result that came back without a remedy is sent to
Gemini for a short treatment suggestion (needs GEMINI_API_KEY).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := imagePath(args, pick)
			if err != nil {
				return err
			}

			path, err = cli.ResolveImagePath(path)
			if err != nil {
				cli.HandleSelectionError(err, path)
			}
			a, err := filehandler.LoadArtifact(path)
			if err != nil {
				cli.HandleSelectionError(err, path)
			}
			if meta, err := filehandler.ExtractImageMetadata(a); err == nil {
				if summary := meta.Summary(); summary != "" {
					fmt.Fprint(cmd.ErrOrStderr(), summary)
				}
			} else {
				log.Debug().Err(err).Msg("No EXIF metadata")
			}

			_, sess := loadSession()
			wf := newWorkflow(sess)

			ctx := cmd.Context()
			if err := wf.SelectFile(ctx, a); err != nil {
				cli.HandleSelectionError(err, path)
			}
			if err := wf.Submit(ctx); err != nil {
				return err
			}
			if err := wf.Wait(ctx); err != nil {
				return err
			}
			snap := wf.Snapshot()

			if savePreview != "" {
				if err := writePreview(snap, savePreview); err != nil {
					log.Warn().Err(err).Str("path", savePreview).Msg("Failed to save preview")
				}
			}

			remedy := ""
			if snap.Result != nil {
				remedy = snap.Result.Remedy
				if remedy == "" && explain {
					remedy = explainRemedy(cmd, snap.Result.Label)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(snap.View(false)); err != nil {
					return err
				}
			} else {
				cli.PrintSnapshot(cmd.OutOrStdout(), snap, remedy)
			}

			if snap.State == workflow.Failed {
				log.Error().Err(snap.Err).Msg("Analysis failed")
				return snap.Err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "choose the image in a native file dialog")
	cmd.Flags().BoolVar(&explain, "explain", false, "ask Gemini for a remedy when the server returns none")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&savePreview, "save-preview", "", "write the generated preview image to this path")
	cmd.Flags().Duration("timeout", 0, "submission timeout; 0 disables it (default from submit_timeout)")
	cmd.Flags().Int("preview-size", 0, "maximum preview width/height in pixels (default from preview.max_dimension; 0 means 1024)")
	cmd.Flags().String("model", chat.DefaultModelName, "Gemini model for --explain")
	return cmd
}

func imagePath(args []string, pick bool) (string, error) {
	switch {
	case len(args) == 1 && pick:
		return "", errors.New("pass an image path or --pick, not both")
	case len(args) == 1:
		return args[0], nil
	case pick:
		path, err := cli.PickImage()
		if errors.Is(err, cli.ErrPickCanceled) {
			return "", errors.New(workflow.NoticeSelectImage)
		}
		return path, err
	default:
		return "", errors.New(workflow.NoticeSelectImage)
	}
}

func explainRemedy(cmd *cobra.Command, label string) string {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Warn().Msg(cli.RemedyMessage(err))
		return ""
	}
	client, err := chat.NewGeminiClient(cmd.Context(), apiKey)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini client unavailable")
		return ""
	}

	remedy, err := chat.NewAdviser(client.Models, cfg.GeminiModel).SuggestRemedy(cmd.Context(), label)
	if err != nil {
		log.Warn().Err(err).Msg(cli.RemedyMessage(err))
		return ""
	}
	return remedy
}

func writePreview(snap workflow.Snapshot, path string) error {
	if snap.Preview == nil {
		return errors.New("no preview was generated")
	}
	data, _, err := preview.Decode(snap.Preview.DataURI)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
