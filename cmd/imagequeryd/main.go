package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imagequery/internal/config"
)

// options holds the command-line flags shared by all subcommands.
type options struct {
	configPath string
	envFiles   []string
	addr       string
	logLevel   string
	logFormat  string
	requestLog string
	strategy   string
	provider   string
	staging    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "imagequeryd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "imagequeryd",
		Short:         "Answer questions about uploaded images with a hosted vision model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment (missing files are ignored)")
	pf.StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8000 (defaults IMAGEQUERY_ADDR)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults IMAGEQUERY_LOG_LEVEL or info)")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: json|console (defaults IMAGEQUERY_LOG_FORMAT or json)")
	pf.StringVar(&opts.requestLog, "request-log", "", "Per-request log level: off|error|info|debug (overridable per request via ?log= or X-Log-Level)")
	pf.StringVar(&opts.strategy, "hosting", "", "Image hosting strategy: local|drive|gcs")
	pf.StringVar(&opts.provider, "provider", "", "Inference provider: huggingface|gemini")
	pf.BoolVar(&opts.staging, "staging", false, "Round-trip each image through a temp file before upload")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP server (default)",
		Example: "  imagequeryd serve --config imagequery.yaml\n  imagequeryd --hosting local --addr :8000",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, os.Getenv)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Redacted())
		},
	}
	root.AddCommand(serveCmd, configCmd)
	return root
}

// loadConfig layers the config file, dotenv files, the environment and then
// explicitly set flags, in that order, and fills defaults. The API key is
// resolved last so it follows a provider chosen by flag.
func loadConfig(cmd *cobra.Command, opts *options, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if flags.Changed("hosting") {
		cfg.Hosting.Strategy = strings.ToLower(opts.strategy)
	}
	if flags.Changed("provider") {
		cfg.Inference.Provider = strings.ToLower(opts.provider)
	}
	if flags.Changed("staging") {
		cfg.Hosting.Staging.Enabled = opts.staging
	}
	config.ResolveAPIKey(&cfg, getenv)
	config.ApplyDefaults(&cfg)
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if cfg.LogFormat == "console" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		l = zerolog.New(os.Stderr)
	}
	return l.Level(lvl).With().Timestamp().Str("service", "imagequeryd").Logger()
}
