package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/leafscan/internal/auth"
	"github.com/fpang/leafscan/internal/chat"
	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/cli"
	"github.com/fpang/leafscan/internal/config"
	"github.com/fpang/leafscan/internal/logging"
	"github.com/fpang/leafscan/internal/preview"
	"github.com/fpang/leafscan/internal/session"
	"github.com/fpang/leafscan/internal/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed static
var staticFS embed.FS

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "leafscan-web",
	Short: "Local web UI for leaf disease analysis",
	Long: `Leafscan Web starts a local web server with a drag-and-drop page for
submitting leaf photos to the disease classifier. The classifier session is
read from LEAFSCAN_TOKEN or ~/.leafscan/session.json (see: leafscan login).

Examples:
  leafscan-web
  leafscan-web --port 9090 --server https://classifier.example.com`,
	Args: cobra.NoArgs,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/leafscan/config.yaml)")
	rootCmd.Flags().Int("port", config.DefaultWebPort, "Port to listen on")
	rootCmd.Flags().String("server", config.DefaultServerURL, "classifier base URL")
	rootCmd.Flags().String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.Flags().StringP("model", "m", chat.DefaultModelName, "Gemini model for remedy suggestions")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel)

	var sess *session.Session
	if store, err := session.DefaultStore(); err == nil {
		sess, _ = session.Resolve(store)
	}

	var adviser Remedier
	if apiKey, err := auth.GetAPIKey(); err == nil {
		client, err := chat.NewGeminiClient(context.Background(), apiKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		adviser = chat.NewAdviser(client.Models, cfg.GeminiModel)
	}

	h := newHub()
	wf := workflow.New(classifier.NewClient(cfg.ServerURL), sess,
		workflow.WithPreviewGenerator(preview.Thumbnail{MaxDimension: cfg.PreviewMaxDim}),
		workflow.WithSubmitTimeout(cfg.SubmitTimeout),
		workflow.WithObserver(h.observe),
	)
	s := &server{wf: wf, hub: h, adviser: adviser, pick: cli.PickImage}

	mux := s.routes()

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to access embedded frontend")
	}
	fileServer := http.FileServer(http.FS(staticSub))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		fileServer.ServeHTTP(w, r)
	})

	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", cfg.WebPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: longPollTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		wf.Reset()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	logging.NewStartupLogger("leafscan-web").
		Version(version).
		Config("serverURL", cfg.ServerURL).
		Config("submitTimeout", cfg.SubmitTimeout.String()).
		Config("addr", addr).
		Config("configFile", cfg.File).
		Feature("session", sess != nil).
		Feature("gemini", adviser != nil).
		InitDuration(time.Since(start)).
		Log()
	fmt.Printf("\n  Leafscan Web UI: http://localhost:%d\n\n", cfg.WebPort)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	return nil
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only localhost origins; the server holds the user's classifier session.
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
