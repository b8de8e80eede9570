package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ministry-portal/internal/logging"
)

// errStale marks an event whose code has already expired.
var errStale = errors.New("code already expired")

// Consumer reads OTPIssuedEvents and emails each code to its owner.
type Consumer struct {
	URL     string
	Queue   string
	AppName string
	Mailer  Mailer
	Log     logging.Logger
	Now     func() time.Time
}

func NewConsumer(url, queue, appName string, m Mailer, log logging.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{URL: url, Queue: queue, AppName: appName, Mailer: m, Log: log, Now: time.Now}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures are retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn(ctx, "otp-consumer: failed to dial broker", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn(ctx, "otp-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.Warn(ctx, "otp-consumer: set QoS failed", "err", err)
	}
	if err := declare(ch, c.Queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, open := <-msgs:
			if !open {
				return errors.New("deliveries channel closed")
			}
			c.settle(ctx, d)
		}
	}
}

// settle handles one delivery.  Bad payloads and expired codes are dropped;
// mail failures are requeued once.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	err := c.handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errStale):
		c.Log.Info(ctx, "otp-consumer: dropping expired code")
		_ = d.Ack(false)
	default:
		c.Log.Error(ctx, "otp-consumer: handle message failed", "err", err, "redelivered", d.Redelivered)
		_ = d.Nack(false, !d.Redelivered)
	}
}

// handle decodes one event and mails the code.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev OTPIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.Code == "" {
		return errors.New("event missing email or code")
	}
	left := ev.ExpiresAt.Sub(c.Now())
	if left <= 0 {
		return errStale
	}
	subject, text := composeCodeEmail(c.AppName, ev, int(math.Ceil(left.Minutes())))
	if err := c.Mailer.Send(ctx, ev.Email, subject, text); err != nil {
		return err
	}
	c.Log.Info(ctx, "reset code mailed", "email", ev.Email)
	return nil
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
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
