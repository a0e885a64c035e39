package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/config"
	"github.com/fpang/leafscan/internal/logging"
	"github.com/fpang/leafscan/internal/preview"
	"github.com/fpang/leafscan/internal/session"
	"github.com/fpang/leafscan/internal/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "leafscan",
	Short: "Diagnose plant leaf diseases from a photo",
	Long: `Leafscan sends a photo of a plant leaf to the disease classifier and
shows the predicted condition, how confident the model is and a suggested
remedy.

Examples:
  leafscan login
  leafscan analyze tomato-leaf.jpg
  leafscan analyze --pick --explain
  leafscan remedy Tomato___Late_blight`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/leafscan/config.yaml)")
	rootCmd.PersistentFlags().String("server", config.DefaultServerURL, "classifier base URL")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(loginCmd(), logoutCmd(), whoamiCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(remedyCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	logging.Init(cfg.LogLevel)
	logging.NewStartupLogger("leafscan").
		Version(version).
		Config("serverURL", cfg.ServerURL).
		Config("submitTimeout", cfg.SubmitTimeout.String()).
		Config("configFile", cfg.File).
		Config("command", cmd.Name()).
		InitDuration(time.Since(start)).
		Log()
	return nil
}

// newClient returns a classifier client for the configured server.
func newClient() *classifier.Client {
	return classifier.NewClient(cfg.ServerURL)
}

// loadSession resolves the bearer token. No session is not an error: the
// server decides whether anonymous submissions are allowed.
func loadSession() (*session.Store, *session.Session) {
	store, err := session.DefaultStore()
	if err != nil {
		log.Warn().Err(err).Msg("Session store unavailable")
		return nil, nil
	}
	sess, err := session.Resolve(store)
	if err != nil {
		log.Debug().Err(err).Msg("No saved session")
		return store, nil
	}
	return store, sess
}

// newWorkflow wires the classifier, preview and timeout settings.
func newWorkflow(sess *session.Session, opts ...workflow.Option) *workflow.Workflow {
	opts = append([]workflow.Option{
		workflow.WithPreviewGenerator(preview.Thumbnail{MaxDimension: cfg.PreviewMaxDim}),
		workflow.WithSubmitTimeout(cfg.SubmitTimeout),
		workflow.WithObserver(logTransition),
	}, opts...)
	return workflow.New(newClient(), sess, opts...)
}

func logTransition(s workflow.Snapshot) {
	log.Debug().
		Uint64("version", s.Version).
		Str("state", s.State.String()).
		Bool("previewPending", s.PreviewPending).
		Str("notice", s.Notice).
		Msg("Workflow transition")
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
