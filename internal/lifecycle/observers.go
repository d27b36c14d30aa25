package lifecycle

import (
	"context"

	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/mongo"
)

// StatusWriter persists the latest status of a call
type StatusWriter interface {
	UpdateCallStatus(ctx context.Context, callID, status, message string) error
}

// StoreObserver writes every transition to the call store
type StoreObserver struct{ Store StatusWriter }

func (StoreObserver) Name() string { return "store" }

func (o StoreObserver) Observe(ctx context.Context, t Transition) error {
	return o.Store.UpdateCallStatus(ctx, t.CallID, t.Status, t.Message)
}

// Publisher sends an event to the message bus
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, body interface{}) error
}

// QueueObserver publishes transitions as call.status.<status>
type QueueObserver struct{ Publisher Publisher }

func (QueueObserver) Name() string { return "amqp" }

func (o QueueObserver) Observe(ctx context.Context, t Transition) error {
	return o.Publisher.PublishJSON(ctx, RoutingKey(t.Status), t)
}

// RoutingKey is the topic a status is published under
func RoutingKey(status string) string { return "call.status." + status }

// AuditObserver records final outcomes in the audit log
type AuditObserver struct{ Client *mongo.Client }

func (AuditObserver) Name() string { return "audit" }

func (o AuditObserver) Observe(ctx context.Context, t Transition) error {
	if !t.Final {
		return nil
	}
	return audit.Log(ctx, o.Client, "voicebot", audit.ActionOutcome, "call", t.CallID, map[string]interface{}{
		"status":  t.Status,
		"message": t.Message,
		"stage":   t.Stage,
	})
}
