package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueryBuilder provides a fluent interface for MongoDB queries
type QueryBuilder struct {
	collection *mongo.Collection
	filter     bson.M
	sort       bson.D
	limit      int64
	skip       int64
}

// NewQuery creates a new query builder for a collection
func (c *Client) NewQuery(collectionName string) *QueryBuilder {
	return &QueryBuilder{
		collection: c.Collection(collectionName),
		filter:     bson.M{},
	}
}

// Eq adds an equality filter
func (q *QueryBuilder) Eq(field string, value interface{}) *QueryBuilder {
	q.filter[field] = value
	return q
}

// In adds an "in" filter
func (q *QueryBuilder) In(field string, values interface{}) *QueryBuilder {
	q.filter[field] = bson.M{"$in": values}
	return q
}

// Gte adds an inclusive lower bound
func (q *QueryBuilder) Gte(field string, value interface{}) *QueryBuilder {
	return q.bound(field, "$gte", value)
}

// Lte adds an inclusive upper bound
func (q *QueryBuilder) Lte(field string, value interface{}) *QueryBuilder {
	return q.bound(field, "$lte", value)
}

func (q *QueryBuilder) bound(field, op string, value interface{}) *QueryBuilder {
	cond, ok := q.filter[field].(bson.M)
	if !ok {
		cond = bson.M{}
		q.filter[field] = cond
	}
	cond[op] = value
	return q
}

// Limit caps the number of documents Find returns
func (q *QueryBuilder) Limit(n int64) *QueryBuilder {
	q.limit = n
	return q
}

// Skip skips the first n matches
func (q *QueryBuilder) Skip(n int64) *QueryBuilder {
	q.skip = n
	return q
}

// Sort adds a sort key
func (q *QueryBuilder) Sort(field string, ascending bool) *QueryBuilder {
	order := -1
	if ascending {
		order = 1
	}
	q.sort = append(q.sort, bson.E{Key: field, Value: order})
	return q
}

// Filter returns the accumulated filter
func (q *QueryBuilder) Filter() bson.M {
	return q.filter
}

// FindOne decodes the first match into out. found is false on no match.
func (q *QueryBuilder) FindOne(ctx context.Context, out interface{}) (found bool, err error) {
	opts := options.FindOne()
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	err = q.collection.FindOne(ctx, q.filter, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find decodes every match into out, a pointer to a slice
func (q *QueryBuilder) Find(ctx context.Context, out interface{}) error {
	opts := options.Find()
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	if q.limit > 0 {
		opts.SetLimit(q.limit)
	}
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	cur, err := q.collection.Find(ctx, q.filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// Count returns the number of matches, ignoring limit and skip
func (q *QueryBuilder) Count(ctx context.Context) (int64, error) {
	return q.collection.CountDocuments(ctx, q.filter)
}

// Insert inserts a document
func (q *QueryBuilder) Insert(ctx context.Context, document interface{}) (interface{}, error) {
	result, err := q.collection.InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

// Upsert applies update to the first match, inserting when none exists
func (q *QueryBuilder) Upsert(ctx context.Context, update interface{}) (*mongo.UpdateResult, error) {
	return q.collection.UpdateOne(ctx, q.filter, update, options.Update().SetUpsert(true))
}
