package summary

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/suPer8Hu/qbot/internal/chat"
)

const DefaultTimeout = 90 * time.Second

// Scheduler queues a summary regeneration. Schedule never blocks the caller
// on the regeneration itself and never reports its failure.
type Scheduler interface {
	Schedule(job chat.SummaryJob)
}

// InlineScheduler runs each job on its own goroutine with a fresh context.
type InlineScheduler struct {
	svc     *Service
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewInlineScheduler(svc *Service, timeout time.Duration, logger *slog.Logger) *InlineScheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InlineScheduler{svc: svc, timeout: timeout, logger: logger}
}

func (s *InlineScheduler) Schedule(job chat.SummaryJob) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("summary job panicked", "chat_id", job.ChatID, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.svc.Regenerate(ctx, job); err != nil {
			s.logger.Warn("summary regeneration failed", "chat_id", job.ChatID, "provider", job.Provider, "error", err)
		}
	}()
}

// Wait blocks until every scheduled job has finished.
func (s *InlineScheduler) Wait() {
	s.wg.Wait()
}

type Publisher interface {
	PublishSummaryJob(ctx context.Context, job chat.SummaryJob) error
}

// QueueScheduler hands jobs to a broker for the worker process. When the
// broker refuses a job it runs through Fallback instead.
type QueueScheduler struct {
	pub      Publisher
	Fallback Scheduler
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewQueueScheduler(pub Publisher, fallback Scheduler, logger *slog.Logger) *QueueScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueScheduler{pub: pub, Fallback: fallback, logger: logger}
}

func (s *QueueScheduler) Schedule(job chat.SummaryJob) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.pub.PublishSummaryJob(ctx, job)
		if err == nil {
			return
		}
		s.logger.Warn("publish summary job failed", "chat_id", job.ChatID, "error", err)
		if s.Fallback != nil {
			s.Fallback.Schedule(job)
		}
	}()
}

func (s *QueueScheduler) Wait() {
	s.wg.Wait()
	if w, ok := s.Fallback.(interface{ Wait() }); ok {
		w.Wait()
	}
}
