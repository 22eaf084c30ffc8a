package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/qbot/internal/config"
	"github.com/suPer8Hu/qbot/internal/logutil"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "qbot",
		Short:        "Telegram LLM chat bot",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (optional); environment variables win.")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Logging level: debug|info|warn|error (defaults to LOG_LEVEL).")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Logging format: text|json (defaults to LOG_FORMAT).")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newWorkerCmd(opts))
	cmd.AddCommand(newSetupWebhookCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	return cmd
}

// load reads the configuration and builds the process logger, which also
// becomes the slog default.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if strings.TrimSpace(o.logLevel) != "" {
		cfg.LogLevel = o.logLevel
	}
	if strings.TrimSpace(o.logFormat) != "" {
		cfg.LogFormat = o.logFormat
	}
	logger, err := logutil.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
