package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/qbot/internal/chat"
	"github.com/suPer8Hu/qbot/internal/db"
	"github.com/suPer8Hu/qbot/internal/store/rabbitmq"
	"github.com/suPer8Hu/qbot/internal/summary"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume summary jobs from RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.WorkerConcurrency = concurrency
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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
			svc := summary.NewService(repo, reg, logger)

			consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			return consumer.Run(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job chat.SummaryJob) error {
				ctx, cancel := context.WithTimeout(ctx, summary.DefaultTimeout)
				defer cancel()
				return svc.Regenerate(ctx, job)
			})
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Jobs in flight (defaults to WORKER_CONCURRENCY).")
	return cmd
}
