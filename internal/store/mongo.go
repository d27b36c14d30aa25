package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/mongo"
	"github.com/troikatech/collections-agent/pkg/otel"
)

const (
	customersCollection = "customers"
	callsCollection     = "calls"
)

// MongoStore keeps customers and call records in MongoDB
type MongoStore struct {
	client *mongo.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewMongoStore(client *mongo.Client, logger *zap.Logger) *MongoStore {
	return &MongoStore{client: client, logger: logger, now: time.Now}
}

// FindByPhone returns the first customer whose phone matches any variant
func (s *MongoStore) FindByPhone(ctx context.Context, variants []string) (*session.CallParticipant, error) {
	if len(variants) == 0 {
		return nil, nil
	}
	var p session.CallParticipant
	var found bool
	err := otel.Trace(ctx, "mongo.customers.find", func(ctx context.Context) error {
		var err error
		found, err = s.client.NewQuery(customersCollection).
			In("phone", variants).
			FindOne(ctx, &p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// UpsertCustomer creates or replaces the customer keyed by phone
func (s *MongoStore) UpsertCustomer(ctx context.Context, p *session.CallParticipant) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Phone == "" {
		return fmt.Errorf("customer phone is required")
	}
	return otel.Trace(ctx, "mongo.customers.upsert", func(ctx context.Context) error {
		_, err := s.client.NewQuery(customersCollection).
			Eq("phone", p.Phone).
			Upsert(ctx, bson.M{"$set": p, "$setOnInsert": bson.M{"created_at": s.now()}})
		if err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}
		return nil
	})
}

// UpdateCallStatus upserts the call record and appends to its history
func (s *MongoStore) UpdateCallStatus(ctx context.Context, callID, status, message string) error {
	update := callStatusUpdate(callID, status, message, s.now())
	return otel.Trace(ctx, "mongo.calls.update", func(ctx context.Context) error {
		_, err := s.client.NewQuery(callsCollection).Eq("call_id", callID).Upsert(ctx, update)
		if err != nil {
			return fmt.Errorf("update call status: %w", err)
		}
		return nil
	})
}

// Call returns the stored record for callID, or nil when there is none
func (s *MongoStore) Call(ctx context.Context, callID string) (*CallRecord, error) {
	var rec CallRecord
	found, err := s.client.NewQuery(callsCollection).Eq("call_id", callID).FindOne(ctx, &rec)
	if err != nil {
		return nil, fmt.Errorf("find call: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// OutcomeCounts tallies the latest status of calls updated since the given time
func (s *MongoStore) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	var recs []CallRecord
	err := otel.Trace(ctx, "mongo.calls.outcomes", func(ctx context.Context) error {
		return s.client.NewQuery(callsCollection).Gte("updated_at", since).Find(ctx, &recs)
	})
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	counts := make(map[string]int64)
	for _, r := range recs {
		counts[r.Status]++
	}
	return counts, nil
}

func callStatusUpdate(callID, status, message string, at time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"status":     status,
			"message":    message,
			"updated_at": at,
		},
		"$setOnInsert": bson.M{
			"call_id":    callID,
			"created_at": at,
		},
		"$push": bson.M{
			"history": bson.M{"status": status, "message": message, "at": at},
		},
	}
}

// Close is a no-op; the shared client is disconnected by its owner
func (s *MongoStore) Close(context.Context) error { return nil }
