// Package notify publishes dealer notifications and invoice commands to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tournevent/fulfillment/internal/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Default topics.
const (
	DefaultNotificationTopic = "dealer-notifications"
	DefaultInvoiceTopic      = "invoice-commands"
)

// CommandConvertConceptToPaid asks the invoicing service to finalize the
// concept invoice of an order.
const CommandConvertConceptToPaid = "CONVERT_CONCEPT_TO_PAID"

// Producer writes a single message.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Config configures the Kafka producers.
type Config struct {
	Brokers           []string
	NotificationTopic string
	InvoiceTopic      string
	ClientID          string
	BatchTimeout      time.Duration
}

// NotificationEvent is published for every dealer notification.
type NotificationEvent struct {
	EventID       string                    `json:"event_id"`
	Kind          shipping.NotificationKind `json:"kind"`
	LocationID    string                    `json:"location_id"`
	OrderID       string                    `json:"order_id"`
	FulfillmentID int64                     `json:"fulfillment_id"`
	SentAt        time.Time                 `json:"sent_at"`
}

// InvoiceCommand is published to convert a concept invoice to paid.
type InvoiceCommand struct {
	EventID         string `json:"event_id"`
	Command         string `json:"command"`
	OrderID         string `json:"order_id"`
	FulfillmentID   int64  `json:"fulfillment_id"`
	PlatformOrderID string `json:"platform_order_id"`
	StoreID         string `json:"store_id"`
}

// Publisher implements shipping.Notifier and shipping.Invoicer.
type Publisher struct {
	notifications Producer
	invoices      Producer
	logger        *otelzap.Logger
	now           func() time.Time
}

// New creates traced Kafka writers for both topics.
func New(cfg Config, tp trace.TracerProvider, logger *otelzap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("notify: no kafka brokers configured")
	}
	if cfg.NotificationTopic == "" {
		cfg.NotificationTopic = DefaultNotificationTopic
	}
	if cfg.InvoiceTopic == "" {
		cfg.InvoiceTopic = DefaultInvoiceTopic
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	notifications, err := newWriter(cfg, cfg.NotificationTopic, tp)
	if err != nil {
		return nil, err
	}
	invoices, err := newWriter(cfg, cfg.InvoiceTopic, tp)
	if err != nil {
		_ = notifications.Close()
		return nil, err
	}
	return NewWithProducers(notifications, invoices, logger), nil
}

func newWriter(cfg Config, topic string, tp trace.TracerProvider) (Producer, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	w, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(topic),
			attribute.String("messaging.kafka.client_id", cfg.ClientID),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka writer for %s: %w", topic, err)
	}
	return w, nil
}

// NewWithProducers creates a publisher on existing producers.
func NewWithProducers(notifications, invoices Producer, logger *otelzap.Logger) *Publisher {
	return &Publisher{
		notifications: notifications,
		invoices:      invoices,
		logger:        logger,
		now:           time.Now,
	}
}

// SendDealerNotification publishes a notification for the dealer at locationID.
func (p *Publisher) SendDealerNotification(ctx context.Context, kind shipping.NotificationKind, locationID, orderID string, fulfillmentID int64) error {
	event := NotificationEvent{
		EventID:       uuid.NewString(),
		Kind:          kind,
		LocationID:    locationID,
		OrderID:       orderID,
		FulfillmentID: fulfillmentID,
		SentAt:        p.now().UTC(),
	}
	if err := p.publish(ctx, p.notifications, orderID, event); err != nil {
		return fmt.Errorf("publishing %s notification: %w", kind, err)
	}
	p.logger.Ctx(ctx).Info("Dealer notification sent",
		zap.String("kind", string(kind)),
		zap.String("location_id", locationID),
		zap.String("order_id", orderID),
		zap.Int64("fulfillment_id", fulfillmentID),
	)
	return nil
}

// ConvertConceptToPaid publishes an invoice command for the order.
func (p *Publisher) ConvertConceptToPaid(ctx context.Context, orderID string, fulfillmentID int64, platformOrderID, storeID string) error {
	cmd := InvoiceCommand{
		EventID:         uuid.NewString(),
		Command:         CommandConvertConceptToPaid,
		OrderID:         orderID,
		FulfillmentID:   fulfillmentID,
		PlatformOrderID: platformOrderID,
		StoreID:         storeID,
	}
	if err := p.publish(ctx, p.invoices, orderID, cmd); err != nil {
		return fmt.Errorf("publishing invoice command: %w", err)
	}
	p.logger.Ctx(ctx).Info("Invoice command sent",
		zap.String("order_id", orderID),
		zap.Int64("fulfillment_id", fulfillmentID),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, producer Producer, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return producer.WriteMessage(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  p.now(),
	})
}

// Close closes both producers.
func (p *Publisher) Close() error {
	return errors.Join(p.notifications.Close(), p.invoices.Close())
}

var (
	_ shipping.Notifier = (*Publisher)(nil)
	_ shipping.Invoicer = (*Publisher)(nil)
)
