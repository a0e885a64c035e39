// Package config layers defaults, ~/.config/leafscan/config.yaml, LEAFSCAN_*
// environment variables and command-line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys understood by Load. Flags bound with BindFlags use the same names.
const (
	KeyServerURL     = "server.url"
	KeySubmitTimeout = "submit_timeout"
	KeyPreviewMaxDim = "preview.max_dimension"
	KeyLogLevel      = "logging.level"
	KeyGeminiModel   = "gemini.model"
	KeyWebPort       = "web.port"
)

// Defaults.
const (
	DefaultServerURL     = "http://localhost:8000"
	DefaultSubmitTimeout = 30 * time.Second
	DefaultPreviewMaxDim = 1024
	DefaultLogLevel      = "info"
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultWebPort       = 8080
)

// EnvPrefix is prepended to every environment override, e.g.
// LEAFSCAN_SERVER_URL for server.url.
const EnvPrefix = "LEAFSCAN"

// Config is the resolved configuration.
type Config struct {
	ServerURL     string
	SubmitTimeout time.Duration
	PreviewMaxDim int
	LogLevel      string
	GeminiModel   string
	WebPort       int

	// File is the config file that was read, or "" when none was found.
	File string
}

// New returns a viper instance with defaults and env bindings applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyServerURL, DefaultServerURL)
	v.SetDefault(KeySubmitTimeout, DefaultSubmitTimeout)
	v.SetDefault(KeyPreviewMaxDim, DefaultPreviewMaxDim)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyGeminiModel, DefaultGeminiModel)
	v.SetDefault(KeyWebPort, DefaultWebPort)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds each flag whose name maps to a config key. Unknown flags
// are ignored, so commands only declare the ones they use.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	names := map[string]string{
		"server":       KeyServerURL,
		"timeout":      KeySubmitTimeout,
		"preview-size": KeyPreviewMaxDim,
		"log-level":    KeyLogLevel,
		"model":        KeyGeminiModel,
		"port":         KeyWebPort,
	}
	for flag, key := range names {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}
	}
	return nil
}

// Load reads cfgFile, or config.yaml from ~/.config/leafscan and the current
// directory when cfgFile is empty. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "leafscan"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		ServerURL:     strings.TrimRight(v.GetString(KeyServerURL), "/"),
		SubmitTimeout: v.GetDuration(KeySubmitTimeout),
		PreviewMaxDim: v.GetInt(KeyPreviewMaxDim),
		LogLevel:      v.GetString(KeyLogLevel),
		GeminiModel:   v.GetString(KeyGeminiModel),
		WebPort:       v.GetInt(KeyWebPort),
		File:          v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%s must not be empty", KeyServerURL)
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeySubmitTimeout)
	}
	if c.PreviewMaxDim < 0 {
		return fmt.Errorf("%s must not be negative", KeyPreviewMaxDim)
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return fmt.Errorf("%s %d out of range", KeyWebPort, c.WebPort)
	}
	return nil
}
