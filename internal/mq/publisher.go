package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/db"
)

// Report event types
const (
	EventInserted        = "inserted"
	EventValidityUpdated = "validity_updated"
	EventDeleted         = "deleted"
)

// AppID identifies this service as the producer of report events
const AppID = "screenrecording-report"

// ReportEvent describes a change applied to a report collection
type ReportEvent struct {
	Event      string    `json:"event"`
	Collection string    `json:"collection"`
	ReportID   string    `json:"report_id,omitempty"`
	ClientID   *int64    `json:"clientId,omitempty"`
	MacAddress string    `json:"macAddress,omitempty"`
	IsValid    *bool     `json:"isValid,omitempty"`
	Count      int64     `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey returns the topic routing key for e
func (e ReportEvent) RoutingKey() string {
	return fmt.Sprintf("report.%s.%s", e.Collection, e.Event)
}

// Publishing builds the broker message for e. Events are persistent JSON
// messages typed by their event name.
func (e ReportEvent) Publishing() (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal %s event: %w", e.Event, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         e.Event,
		AppId:        AppID,
		Timestamp:    e.OccurredAt,
		Body:         body,
	}, nil
}

// Publisher owns a broker connection and one channel bound to the report
// event exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// DialPublisher connects to the broker at url and declares the report exchange
func DialPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	logger = logger.With(zap.String("broker", db.MaskPassword(url)), zap.String("exchange", exchange))
	logger.Info("connecting report event publisher...")

	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Error("rabbitmq connection failed", zap.Error(err))
		return nil, fmt.Errorf("[RABBITMQ CONNECTION FAILED] cannot connect to RabbitMQ. Please check: 1) RabbitMQ is running, 2) RABBITMQ_URL is correct or unset to disable report events, 3) Credentials are valid. Error: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open report event channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare report exchange %s: %w", exchange, err)
	}

	logger.Info("report event publisher ready")
	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// PublishReportEvent publishes a report change event
func (p *Publisher) PublishReportEvent(ctx context.Context, event ReportEvent) error {
	msg, err := event.Publishing()
	if err != nil {
		return err
	}

	routingKey := event.RoutingKey()
	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", routingKey, err)
	}

	p.logger.Debug("published report event",
		zap.String("routing_key", routingKey),
		zap.String("message_id", msg.MessageId))
	return nil
}

// Close closes the channel and then the connection
func (p *Publisher) Close() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// RegisterLifecycle closes the publisher when the application stops
func (p *Publisher) RegisterLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := p.Close(); err != nil {
				p.logger.Warn("failed to close report event publisher", zap.Error(err))
				return nil
			}
			p.logger.Info("report event publisher closed")
			return nil
		},
	})
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

// PublishReportEvent implements the publisher contract without sending anything
func (NopPublisher) PublishReportEvent(context.Context, ReportEvent) error { return nil }
