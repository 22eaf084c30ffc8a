package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/qbot/internal/bot"
	"github.com/suPer8Hu/qbot/internal/telegram"
)

func newSetupWebhookCmd(opts *rootOptions) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "setup-webhook",
		Short: "Register the webhook and the command menu with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.BotToken == "" {
				return errors.New("BOT_TOKEN is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tg := telegram.NewClient(nil, cfg.TelegramAPIBase, cfg.BotToken, logger)

			if remove {
				if err := tg.DeleteWebhook(ctx); err != nil {
					return fmt.Errorf("delete webhook: %w", err)
				}
				logger.Info("webhook removed")
				return nil
			}

			if cfg.WebhookURL == "" {
				return errors.New("WEBHOOK_URL is not set")
			}
			if cfg.BotSecret == "" {
				return errors.New("BOT_SECRET is required")
			}
			url := cfg.WebhookURL + "/webhook"
			if err := tg.SetWebhook(ctx, url, cfg.BotSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			logger.Info("webhook registered", "url", url)

			commands := bot.New(bot.Deps{Logger: logger}, bot.Options{}).Commands()
			if err := tg.SetMyCommands(ctx, commands); err != nil {
				return fmt.Errorf("set commands: %w", err)
			}
			logger.Info("commands registered", "count", len(commands))
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "Remove the webhook instead of registering it.")
	return cmd
}
