package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/bot"
	"github.com/suPer8Hu/qbot/internal/chat"
	"github.com/suPer8Hu/qbot/internal/config"
	"github.com/suPer8Hu/qbot/internal/db"
	"github.com/suPer8Hu/qbot/internal/export"
	"github.com/suPer8Hu/qbot/internal/httpapi"
	"github.com/suPer8Hu/qbot/internal/store/rabbitmq"
	"github.com/suPer8Hu/qbot/internal/store/redisstore"
	"github.com/suPer8Hu/qbot/internal/summary"
	"github.com/suPer8Hu/qbot/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

type waitingScheduler interface {
	summary.Scheduler
	Wait()
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	gdb, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(gdb, logger)

	rdb := openRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	reg := newRegistry(cfg, rdb, logger)
	repo, err := newRepo(gdb, reg, cfg)
	if err != nil {
		return err
	}

	summaries, closeSummaries := newSummaryScheduler(cfg, repo, reg, logger)
	defer closeSummaries()

	exporter, err := newExporter(cfg, repo, reg, logger)
	if err != nil {
		return err
	}

	tg := telegram.NewClient(nil, cfg.TelegramAPIBase, cfg.BotToken, logger)
	gate := access.NewGate(access.ParseIDs(cfg.AllowedUsers), repo, logger)
	if gate.Open() {
		logger.Warn("ALLOWED_USERS is empty, the bot is open to everyone")
	}

	b := bot.New(bot.Deps{
		Store:     repo,
		AI:        reg,
		Messenger: tg,
		Gate:      gate,
		Summaries: summaries,
		Exporter:  exporter,
		Limiter:   redisstore.NewRateLimiter(rdb, cfg.RateLimitPerMinute, logger),
		Logger:    logger,
	}, bot.Options{
		ContextWindow:  cfg.ChatContextWindowSize,
		SummaryEvery:   cfg.SummaryEvery,
		RequestTimeout: cfg.AIRequestTimeout,
		Freeform:       cfg.ChatFreeform,
	})

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		BotSecret:      cfg.BotSecret,
		AdminJWTSecret: cfg.AdminJWTSecret,
	}, b, gate, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("bot server listening", "addr", srv.Addr, "webhook", "/webhook")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	b.Wait()
	summaries.Wait()
	logger.Info("shutdown complete")
	return nil
}

// newSummaryScheduler runs summaries in-process, or publishes them to
// RabbitMQ in queue mode with the in-process scheduler as fallback.
func newSummaryScheduler(cfg config.Config, repo *chat.Repo, reg *ai.Registry, logger *slog.Logger) (waitingScheduler, func()) {
	inline := summary.NewInlineScheduler(summary.NewService(repo, reg, logger), summary.DefaultTimeout, logger)
	if cfg.SummaryMode != config.SummaryModeQueue {
		return inline, func() {}
	}
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		logger.Warn("rabbitmq unavailable, summarizing in-process", "error", err)
		return inline, func() {}
	}
	logger.Info("summary jobs go to rabbitmq", "queue", cfg.RabbitQueue)
	return summary.NewQueueScheduler(pub, inline, logger), func() { _ = pub.Close() }
}

func newExporter(cfg config.Config, repo *chat.Repo, reg *ai.Registry, logger *slog.Logger) (*export.Exporter, error) {
	if cfg.NotesRepo == "" {
		return export.NewExporter(repo, reg, nil, "", logger), nil
	}
	auth, err := export.NewAuth(cfg.NotesRepo, cfg.NotesSSHKey, cfg.NotesKnownHosts, cfg.NotesToken)
	if err != nil {
		return nil, err
	}
	pub := export.NewGitPublisher(cfg.NotesRepo, cfg.NotesDir, auth, logger)
	return export.NewExporter(repo, reg, pub, cfg.NotesWebURL, logger), nil
}
