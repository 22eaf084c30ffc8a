package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/qbot/internal/chat"
)

const (
	publishTimeout = 5 * time.Second

	// MaxAttempts bounds how often a failing summary job is tried before it
	// lands in the dead-letter queue.
	MaxAttempts = 3
	retryDelay  = 30 * time.Second

	attemptHeader = "x-qbot-attempt"
)

// topology names the three queues backing one summary queue: the work queue,
// a delay queue whose expired messages flow back to it, and the dead letters.
type topology struct {
	main  string
	retry string
	dlq   string
}

func newTopology(queue string) topology {
	return topology{main: queue, retry: queue + ".retry", dlq: queue + ".dlq"}
}

// declare is shared by publisher and consumer so queue arguments never drift.
func (t topology) declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(t.dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", t.dlq, err)
	}
	if _, err := ch.QueueDeclare(t.retry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.main,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", t.retry, err)
	}
	if _, err := ch.QueueDeclare(t.main, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.dlq,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", t.main, err)
	}
	return nil
}

func dial(url string, t topology) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := t.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) error {
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// publishJob sends job to routingKey. A non-zero delay sets a per-message TTL,
// which is how the retry queue holds a job back.
func publishJob(ctx context.Context, ch *amqp.Channel, routingKey string, job chat.SummaryJob, attempt int, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode summary job: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{attemptHeader: int32(attempt)},
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}
	return nil
}

// attemptOf reads the attempt counter; messages without one are first tries.
func attemptOf(d amqp.Delivery) int {
	switch v := d.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}

// Publisher enqueues summary jobs for `qbot worker`. It is safe for
// concurrent use.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	topo topology

	// mu serializes publishes; an amqp channel is not safe for concurrent
	// publishing.
	mu sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	t := newTopology(queue)
	conn, ch, err := dial(url, t)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, topo: t}, nil
}

func (p *Publisher) Close() error {
	return closeAll(p.ch, p.conn)
}

func (p *Publisher) PublishSummaryJob(ctx context.Context, job chat.SummaryJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return publishJob(ctx, p.ch, p.topo.main, job, 1, 0)
}
