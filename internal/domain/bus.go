package domain

import (
	"context"
)

// AllTenants subscribes a handler to a topic for every tenant.
// Publishing with it is rejected.
const AllTenants = "*"

// EventBus carries import lifecycle events between the API and the workers.
// Supports Go channels (Community) or NATS (Pro).
// Every message is scoped to a tenant.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. Pass AllTenants to
	// receive the topic for every tenant.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope published on the bus. Metadata carries the
// trace context of the publisher.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `json:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `json:"-" yaml:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds
}

// Topic names for the import lifecycle.
const (
	TopicImportSubmitted = "import.submitted"
	TopicImportProcessed = "import.processed"
	TopicImportFailed    = "import.failed"
	TopicImportCompleted = "import.completed"
	TopicLineReviewed    = "line.reviewed"
)

// ImportSubmission is the payload of TopicImportSubmitted.
type ImportSubmission struct {
	ImportID string `json:"importId"`
	Document []byte `json:"document"`
}

// ImportEvent is the payload of the lifecycle topics.
type ImportEvent struct {
	ImportID string           `json:"importId"`
	Status   ImportStatus     `json:"status"`
	LineID   string           `json:"lineId,omitempty"`
	Line     LineStatus       `json:"lineStatus,omitempty"`
	Summary  *MatchingSummary `json:"summary,omitempty"`
}
