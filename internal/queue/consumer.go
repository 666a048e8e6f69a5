package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	// seenEvents bounds how many recent event IDs are remembered for
	// dropping redeliveries.
	seenEvents = 10000
)

// Consumer listens to the booking.confirmed queue and appends one line per
// event to <dir>/booking.log.
type Consumer struct {
	url string
	dir string
	log *logrus.Entry

	mu   sync.Mutex // serialises writes to the log file
	seen *lru.Cache[string, struct{}]
}

// NewConsumer returns a Consumer reading from the broker at url and
// writing into dir.
func NewConsumer(url, dir string, log *logrus.Entry) *Consumer {
	return &Consumer{url: url, dir: dir, log: log, seen: newSeenSet(seenEvents)}
}

// newSeenSet keeps the n most recently written event IDs.
func newSeenSet(n int) *lru.Cache[string, struct{}] {
	if n < 1 {
		n = 1
	}
	cache, _ := lru.New[string, struct{}](n) // only fails for n < 1
	return cache
}

// Run connects to RabbitMQ, declares the booking.confirmed queue and
// consumes it until ctx is cancelled.  Broker failures are retried with
// capped exponential backoff; Run only returns once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			return nil // ctx done
		}
		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, minBackoff) {
			return nil
		}
	}
}

// dial connects to the broker, backing off from minBackoff up to
// maxBackoff between attempts, until it succeeds or ctx is done.
func (c *Consumer) dial(ctx context.Context) (*amqp.Connection, error) {
	backoff := retry.WithCappedDuration(maxBackoff, retry.NewExponential(minBackoff))
	return retry.DoValue(ctx, backoff, func(context.Context) (*amqp.Connection, error) {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warn("failed to dial broker; retrying")
			return nil, retry.RetryableError(err)
		}
		return conn, nil
	})
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if err := declareBookingQueue(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.log.WithError(err).WithField("message_id", d.MessageId).Error("handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends it to the booking log.
// Redelivered events (same event ID) are written once, as long as the
// ID is among the last seenEvents handled.
func (c *Consumer) Handle(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return errors.New("event without booking_id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.EventID != "" {
		if c.seen.Contains(ev.EventID) {
			return nil
		}
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if ev.EventID != "" {
		c.seen.Add(ev.EventID, struct{}{})
	}
	return nil
}

// FormatLine renders an event as a single human-friendly log line.
func FormatLine(ev BookingConfirmedEvent) string {
	return fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%d | session_id=%d | seats=[%s] | event_id=%s\n",
		ev.ConfirmedAt.UTC().Format(time.RFC3339), ev.BookingID, ev.UserID, ev.SessionID, strings.Join(ev.Seats, ","), ev.EventID)
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
