package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RoutingKeyPrefix precedes the event type in every routing key.
const RoutingKeyPrefix = "stablecoin."

// EventPublisher implements event.Publisher on a confirmable channel.
type EventPublisher struct {
	publisher *ConfirmablePublisher
	exchange  string
}

// NewEventPublisher publishes to exchange through p.
func NewEventPublisher(p *ConfirmablePublisher, exchange string) *EventPublisher {
	return &EventPublisher{publisher: p, exchange: exchange}
}

// Publish sends ev as persistent JSON under "stablecoin.<Type>", with the
// caller's trace context in the headers.
func (e *EventPublisher) Publish(ctx context.Context, ev event.Event) error {
	ctx, span := otel.Tracer(constant.TelemetrySDKName).Start(ctx, "rabbitmq.publish_event", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	routingKey := RoutingKeyPrefix + string(ev.Type)

	span.SetAttributes(
		attribute.String(constant.AttrDBSystem, constant.DBSystemRabbitMQ),
		attribute.String("messaging.destination.name", e.exchange),
		attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
		attribute.String("messaging.message.id", ev.ID),
	)

	body, err := json.Marshal(ev)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to encode event", err)
		return fmt.Errorf("encoding event %s: %w", ev.ID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Type),
		Headers:      amqp.Table(opentelemetry.PrepareQueueHeaders(ctx, nil)),
		Body:         body,
	}

	if err := e.publisher.Publish(ctx, e.exchange, routingKey, msg); err != nil {
		opentelemetry.HandleSpanError(&span, "failed to publish event", err)
		return fmt.Errorf("publishing event %s: %w", ev.ID, err)
	}

	return nil
}
