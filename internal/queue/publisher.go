package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends domain events to RabbitMQ.  Each publish opens its own
// connection, so a Publisher holds no broker state and is safe for
// concurrent use.  Errors are logged and returned so callers can choose
// to ignore them without interrupting the main request flow.
type Publisher struct {
	url string
	log *logrus.Entry
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *logrus.Entry) *Publisher {
	return &Publisher{url: url, log: log}
}

// PublishBookingConfirmed publishes ev to the booking.confirmed queue as a
// persistent JSON message whose MessageId is the event ID.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	log := p.log.WithFields(logrus.Fields{"booking_id": ev.BookingID, "event_id": ev.EventID})

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if err := declareBookingQueue(ch); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                    // default exchange
		BookingConfirmedQueue, // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		pub,
	); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	log.Debug("booking.confirmed published")
	return nil
}

func declareBookingQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		BookingConfirmedQueue, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	)
	return err
}
