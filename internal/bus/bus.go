// Package bus carries import lifecycle events for fuelrecon.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

// New creates an event bus from configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// newMessage wraps a payload in an envelope stamped with the caller's
// trace context.
func newMessage(ctx context.Context, tenantID, topic string, payload []byte) (*domain.Message, error) {
	switch tenantID {
	case "":
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	case domain.AllTenants:
		return nil, fmt.Errorf("%w: cannot publish to all tenants", domain.ErrInvalidInput)
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
	return msg, nil
}

// handlerContext restores the publisher's trace context on the
// subscriber side.
func handlerContext(ctx context.Context, msg *domain.Message) context.Context {
	if len(msg.Metadata) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
}
