package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/service"
)

// Publisher hands issued codes to the mail sender.  Every Notify opens its
// own connection; code requests are rare and rate limited.
type Publisher struct {
	URL   string
	Queue string
	Log   logging.Logger
	Now   func() time.Time
}

func NewPublisher(url, queue string, log logging.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{URL: url, Queue: queue, Log: log, Now: time.Now}
}

// Notify publishes c as a persistent OTPIssuedEvent.  Errors are logged
// and returned; the code stays valid in the store either way.
func (p *Publisher) Notify(ctx context.Context, c service.IssuedCode) error {
	pub, err := p.publishing(c)
	if err != nil {
		p.Log.Error(ctx, "rabbitmq: marshal event failed", "err", err)
		return err
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Error(ctx, "rabbitmq: dial failed", "err", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Error(ctx, "rabbitmq: channel open failed", "err", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.Queue); err != nil {
		p.Log.Error(ctx, "rabbitmq: queue declare failed", "queue", p.Queue, "err", err)
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.Log.Error(ctx, "rabbitmq: publish failed", "queue", p.Queue, "err", err)
		return fmt.Errorf("publish: %w", err)
	}
	p.Log.Info(ctx, "reset code queued", "email", c.Email)
	return nil
}

func (p *Publisher) publishing(c service.IssuedCode) (amqp.Publishing, error) {
	now := p.Now()
	body, err := json.Marshal(eventFrom(c, now))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Body:         body,
	}
	// The broker drops the message once the code could no longer be used.
	if ttl := c.ExpiresAt.Sub(now); ttl > 0 {
		pub.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
	}
	return pub, nil
}

// declare makes sure the durable queue exists.  Publisher and consumer
// must declare it with identical arguments.
func declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
