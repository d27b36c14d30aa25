package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/mongo"
)

// Action represents an audit action
type Action string

const (
	ActionLogin    Action = "login"
	ActionDial     Action = "dial"
	ActionHangup   Action = "hangup"
	ActionTransfer Action = "transfer"
	ActionOutcome  Action = "outcome"
	ActionWebhook  Action = "webhook"
)

const collection = "audit_log"

// Event is one audit_log document
type Event struct {
	Actor        string                 `bson:"actor" json:"actor"`
	Action       Action                 `bson:"action" json:"action"`
	ResourceType string                 `bson:"resource_type" json:"resource_type"`
	ResourceID   string                 `bson:"resource_id" json:"resource_id"`
	Metadata     map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt    time.Time              `bson:"created_at" json:"created_at"`
}

// Filter narrows List; zero fields match everything
type Filter struct {
	Actor        string
	Action       Action
	ResourceType string
	ResourceID   string
	Since        time.Time
	Until        time.Time
}

// Log writes an audit event. A nil client skips logging.
func Log(ctx context.Context, client *mongo.Client, actor string, action Action, resourceType, resourceID string, metadata map[string]interface{}) error {
	if client == nil {
		logger.Log.Debug("Audit logging skipped: MongoDB client not available",
			zap.String("action", string(action)),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := client.NewQuery(collection).Insert(ctx, Event{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.Log.Error("Failed to log audit event",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("resource_type", resourceType),
		)
		return err
	}

	return nil
}

// List returns one page of events matching f, newest first, and the total
// number of matches.
func List(ctx context.Context, client *mongo.Client, f Filter, page, limit int) ([]Event, int64, error) {
	if client == nil {
		return nil, 0, nil
	}
	if page < 1 {
		page = 1
	}
	query := func() *mongo.QueryBuilder {
		q := client.NewQuery(collection)
		if f.Actor != "" {
			q.Eq("actor", f.Actor)
		}
		if f.Action != "" {
			q.Eq("action", f.Action)
		}
		if f.ResourceType != "" {
			q.Eq("resource_type", f.ResourceType)
		}
		if f.ResourceID != "" {
			q.Eq("resource_id", f.ResourceID)
		}
		if !f.Since.IsZero() {
			q.Gte("created_at", f.Since)
		}
		if !f.Until.IsZero() {
			q.Lte("created_at", f.Until)
		}
		return q
	}

	total, err := query().Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	var events []Event
	err = query().
		Sort("created_at", false).
		Skip(int64((page - 1) * limit)).
		Limit(int64(limit)).
		Find(ctx, &events)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
