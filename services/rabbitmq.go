package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"smartsensors/config"
	"smartsensors/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQEscalator publishes escalated log entries to a RabbitMQ exchange
type RabbitMQEscalator struct {
	config    *config.Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	logger    *zap.Logger
	mu        sync.Mutex
	isClosing bool
}

// NewRabbitMQEscalator creates a new RabbitMQ escalator and connects to the broker
func NewRabbitMQEscalator(cfg *config.Config, logger *zap.Logger) (*RabbitMQEscalator, error) {
	r := &RabbitMQEscalator{
		config: cfg,
		logger: logger,
	}

	if err := r.connect(); err != nil {
		return nil, err
	}

	return r, nil
}

// connect establishes connection to RabbitMQ and declares the exchange
func (r *RabbitMQEscalator) connect() error {
	var err error

	r.logger.Info("Connecting to RabbitMQ", zap.String("exchange", r.config.RabbitMQExchange))

	maxRetries := 5
	var conn *amqp.Connection
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(r.config.RabbitMQURL)
		if err == nil {
			break
		}

		r.logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		r.config.RabbitMQExchange, // name
		"direct",                  // type
		true,                      // durable
		false,                     // auto-deleted
		false,                     // internal
		false,                     // no-wait
		nil,                       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.channel = channel
	r.mu.Unlock()

	r.logger.Info("Connected to RabbitMQ", zap.String("exchange", r.config.RabbitMQExchange))

	go r.handleReconnect(conn)

	return nil
}

// handleReconnect reconnects when the broker drops the connection
func (r *RabbitMQEscalator) handleReconnect(conn *amqp.Connection) {
	closeErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))

	r.mu.Lock()
	closing := r.isClosing
	r.mu.Unlock()
	if closing || !ok {
		r.logger.Info("RabbitMQ connection closed gracefully")
		return
	}

	r.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

	for {
		r.logger.Info("Attempting to reconnect to RabbitMQ...")
		if err := r.connect(); err == nil {
			r.logger.Info("Successfully reconnected to RabbitMQ")
			return
		} else {
			r.logger.Error("Failed to reconnect", zap.Error(err))
		}
		time.Sleep(5 * time.Second)
	}
}

func (r *RabbitMQEscalator) Name() string { return "rabbitmq" }

// Escalate publishes the entry as a persistent JSON message
func (r *RabbitMQEscalator) Escalate(ctx context.Context, entry models.LogEntry) error {
	body, err := json.Marshal(entry.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel == nil {
		return errors.New("rabbitmq channel not available")
	}

	err = r.channel.PublishWithContext(ctx,
		r.config.RabbitMQExchange,   // exchange
		r.config.RabbitMQRoutingKey, // routing key
		false,                       // mandatory
		false,                       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    entry.Timestamp,
			MessageId:    entry.ID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// Close gracefully closes RabbitMQ connection
func (r *RabbitMQEscalator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isClosing = true
	r.logger.Info("Closing RabbitMQ connection")

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Error("Error closing channel", zap.Error(err))
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			r.logger.Error("Error closing connection", zap.Error(err))
			return err
		}
	}

	return nil
}
