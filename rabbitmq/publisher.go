// Package rabbitmq publishes completed analyses so downstream consumers
// (dashboards, follow-up recommendation jobs) can react without polling the
// summary surface.
package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"

	"face-analyze-pipeline/demographics"
)

// AnalysisEvent is the published message body.
type AnalysisEvent struct {
	SessionID string                `json:"session_id"`
	Analysis  demographics.Analysis `json:"analysis"`
	Timestamp time.Time             `json:"timestamp"`
}

// Publisher sends analysis events to a direct exchange.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher connects to RabbitMQ and declares the exchange.
func NewPublisher(amqpURL, exchangeName, routingKey string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchangeName,
		routingKey: routingKey,
	}, nil
}

// PublishAnalysis sends one completed analysis. Messages are persistent so a
// broker restart does not drop them.
func (p *Publisher) PublishAnalysis(sessionID string, analysis demographics.Analysis) error {
	event := AnalysisEvent{
		SessionID: sessionID,
		Analysis:  analysis,
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}

	err = p.channel.Publish(
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish analysis event: %w", err)
	}

	log.WithFields(log.Fields{
		"session":  sessionID,
		"exchange": p.exchange,
	}).Debug("published analysis event")
	return nil
}

// IsConnected reports whether the underlying connection is still alive.
func (p *Publisher) IsConnected() bool {
	if p.conn == nil || p.channel == nil {
		return false
	}
	select {
	case <-p.conn.NotifyClose(make(chan *amqp.Error)):
		return false
	default:
		return true
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	var err error
	if p.channel != nil {
		if cerr := p.channel.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close channel")
			err = cerr
		}
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close connection")
			if err == nil {
				err = cerr
			}
		}
	}
	return err
}
