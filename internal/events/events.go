// Package events publishes domain events about interview sessions to a
// RabbitMQ topic exchange. Publishing is optional: without a broker URL a
// no-op publisher is used.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pavelanni/mockinterview/internal/metrics"
	"github.com/pavelanni/mockinterview/internal/model"
)

// Exchange is the topic exchange all events are published to.
const Exchange = "mockinterview.events"

// Routing keys.
const (
	SessionCreated  = "session.created"
	SessionFinished = "session.finished"
)

const publishTimeout = 5 * time.Second

// Publisher delivers domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishSessionCreated(ctx context.Context, s *model.Session) error
	PublishSessionFinished(ctx context.Context, sessionID string, sum model.Summary) error
	Close() error
}

// SessionCreatedEvent is the body of a session.created message.
type SessionCreatedEvent struct {
	SessionID    string           `json:"sessionId"`
	UserID       string           `json:"userId,omitempty"`
	Style        model.Style      `json:"style"`
	Difficulty   model.Difficulty `json:"difficulty"`
	NumQuestions int              `json:"numQuestions"`
	Generated    int              `json:"generated"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// SessionFinishedEvent is the body of a session.finished message.
type SessionFinishedEvent struct {
	SessionID  string        `json:"sessionId"`
	Summary    model.Summary `json:"summary"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewSessionCreatedEvent builds the event for a freshly persisted session.
// The JD and question texts are not included.
func NewSessionCreatedEvent(s *model.Session) SessionCreatedEvent {
	return SessionCreatedEvent{
		SessionID:    s.ID,
		UserID:       s.UserID,
		Style:        s.Style,
		Difficulty:   s.Difficulty,
		NumQuestions: s.NumQuestions,
		Generated:    len(s.Questions),
		OccurredAt:   time.Now().UTC(),
	}
}

// NewSessionFinishedEvent builds the event for a finished session.
func NewSessionFinishedEvent(sessionID string, sum model.Summary) SessionFinishedEvent {
	return SessionFinishedEvent{
		SessionID:  sessionID,
		Summary:    sum,
		OccurredAt: time.Now().UTC(),
	}
}

// New connects to the broker at url. An empty url yields a Noop publisher.
func New(url string) (Publisher, error) {
	if url == "" {
		slog.Info("event publishing disabled, no broker url configured")
		return Noop{}, nil
	}
	return NewAMQP(url)
}

// AMQP publishes JSON events over a single channel.
type AMQP struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQP dials the broker and declares the durable topic exchange.
func NewAMQP(url string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, channel: ch, exchange: Exchange}, nil
}

func (p *AMQP) PublishSessionCreated(ctx context.Context, s *model.Session) error {
	return p.publish(ctx, SessionCreated, NewSessionCreatedEvent(s))
}

func (p *AMQP) PublishSessionFinished(ctx context.Context, sessionID string, sum model.Summary) error {
	return p.publish(ctx, SessionFinished, NewSessionFinishedEvent(sessionID, sum))
}

func (p *AMQP) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	metrics.EventsPublished.WithLabelValues(routingKey, "ok").Inc()
	slog.Debug("event published", "routing_key", routingKey)
	return nil
}

func (p *AMQP) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return p.conn.Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishSessionCreated(context.Context, *model.Session) error { return nil }

func (Noop) PublishSessionFinished(context.Context, string, model.Summary) error { return nil }

func (Noop) Close() error { return nil }
