package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/qbot/internal/chat"
)

// JobHandler processes one summary job. A returned error sends the job through
// the retry queue until MaxAttempts, then to the dead-letter queue.
type JobHandler func(ctx context.Context, job chat.SummaryJob) error

type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	topo   topology
	logger *slog.Logger

	// pubMu serializes retry publishes; an amqp channel is not safe for
	// concurrent publishing.
	pubMu sync.Mutex
}

func NewConsumer(url, queue string, logger *slog.Logger) (*Consumer, error) {
	t := newTopology(queue)
	conn, ch, err := dial(url, t)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, ch: ch, topo: t, logger: logger}, nil
}

func (c *Consumer) Close() error {
	return closeAll(c.ch, c.conn)
}

// Run consumes until ctx is cancelled, with at most concurrency jobs in flight.
func (c *Consumer) Run(ctx context.Context, concurrency int, handle JobHandler) error {
	if concurrency <= 0 {
		concurrency = 2
	}
	//  strict concurrency control
	if err := c.ch.Qos(concurrency, 0, false); err != nil {
		return err
	}
	msgs, err := c.ch.Consume(c.topo.main, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("worker started", "queue", c.topo.main, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, handle)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				c.logger.Warn("delivery channel closed")
				close(jobs)
				wg.Wait()
				return amqp.ErrClosed
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handle JobHandler) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("summary job panicked", "worker", workerID, "panic", r)
			_ = d.Nack(false, false)
		}
	}()

	var job chat.SummaryJob
	if err := json.Unmarshal(d.Body, &job); err != nil || !job.Valid() {
		c.logger.Warn("bad message", "worker", workerID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := handle(ctx, job); err != nil {
		attempt := attemptOf(d)
		c.logger.Warn("job failed", "worker", workerID, "chat_id", job.ChatID, "attempt", attempt, "cost", time.Since(start), "error", err)
		c.retryOrDrop(ctx, d, job, attempt)
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Warn("ack failed", "worker", workerID, "chat_id", job.ChatID, "error", err)
	}
	if cost := time.Since(start); cost > 2*time.Second {
		c.logger.Info("job_timing", "chat_id", job.ChatID, "total", cost)
	}
}

// retryOrDrop parks a failed job in the retry queue, or dead-letters it once
// MaxAttempts is reached or the retry publish fails.
func (c *Consumer) retryOrDrop(ctx context.Context, d amqp.Delivery, job chat.SummaryJob, attempt int) {
	if attempt >= MaxAttempts {
		_ = d.Nack(false, false)
		return
	}
	c.pubMu.Lock()
	err := publishJob(ctx, c.ch, c.topo.retry, job, attempt+1, retryDelay)
	c.pubMu.Unlock()
	if err != nil {
		c.logger.Warn("retry publish failed", "chat_id", job.ChatID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
