package mailqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	amqp "github.com/streadway/amqp"
)

const queueName = "password_reset_mail"

// Job is one queued password-reset mail.
type Job struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	ResetURL string `json:"reset_url"`
}

// Client holds the RabbitMQ connection and channel for the mail queue.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ and declares the mail queue.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", queueName, err)
	}

	log.Info().Str("queue", queueName).Msg("mail queue declared")

	return &Client{
		conn:    conn,
		channel: ch,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing mail queue client: %v", errs)
	}
	return nil
}

// EnqueueResetMail publishes a password-reset mail job.
func (c *Client) EnqueueResetMail(email, name, resetURL string) error {
	if c == nil || c.channel == nil {
		return fmt.Errorf("mail queue channel is not available")
	}

	body, err := json.Marshal(Job{To: email, Name: name, ResetURL: resetURL})
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}

	err = c.channel.Publish(
		"",        // default exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish mail job: %w", err)
	}
	return nil
}

// Consume delivers queued mail jobs to handler. Jobs are acked on success
// and requeued on handler failure.
func (c *Client) Consume(handler func(Job) error) error {
	if c.channel == nil {
		return fmt.Errorf("mail queue channel is not available")
	}

	msgs, err := c.channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack off; ack after the mail is sent
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register mail consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			var job Job
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				log.Error().Err(err).Msg("discarding malformed mail job")
				if nackErr := msg.Nack(false, false); nackErr != nil {
					log.Error().Err(nackErr).Msg("failed to nack mail job")
				}
				continue
			}
			if err := handler(job); err != nil {
				log.Error().Err(err).Str("to", job.To).Msg("failed to send mail job")
				if nackErr := msg.Nack(false, true); nackErr != nil {
					log.Error().Err(nackErr).Msg("failed to nack mail job")
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ack mail job")
			}
		}
	}()

	return nil
}
