// Package store persists customers and call outcomes. Mongo is the
// default backend; Postgres serves deployments whose loan book already
// lives in a relational database.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/mongo"
)

// CustomerStore reads customers by phone and records call statuses
type CustomerStore interface {
	session.CustomerLookup
	UpdateCallStatus(ctx context.Context, callID, status, message string) error
	OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error)
	Close(ctx context.Context) error
}

var (
	_ CustomerStore = (*MongoStore)(nil)
	_ CustomerStore = (*PostgresStore)(nil)
)

// CallRecord is the persisted outcome of one call
type CallRecord struct {
	CallID    string         `bson:"call_id" json:"call_id"`
	Status    string         `bson:"status" json:"status"`
	Message   string         `bson:"message,omitempty" json:"message,omitempty"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
	History   []StatusChange `bson:"history,omitempty" json:"history,omitempty"`
}

// StatusChange is one entry in a call's status history
type StatusChange struct {
	Status  string    `bson:"status" json:"status"`
	Message string    `bson:"message,omitempty" json:"message,omitempty"`
	At      time.Time `bson:"at" json:"at"`
}

// Options selects and configures the backend
type Options struct {
	Driver      string // mongo | postgres
	PostgresURL string
	Mongo       *mongo.Client
}

// Open returns the configured customer store
func Open(ctx context.Context, opts Options, logger *zap.Logger) (CustomerStore, error) {
	switch opts.Driver {
	case "", "mongo":
		if opts.Mongo == nil {
			return nil, fmt.Errorf("mongo store requires a client")
		}
		return NewMongoStore(opts.Mongo, logger), nil
	case "postgres":
		return NewPostgresStore(ctx, opts.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
}
