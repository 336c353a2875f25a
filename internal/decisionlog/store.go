package decisionlog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookflow/internal/constants"
	"bookflow/internal/workflow"
	"bookflow/pkg/metrics"
)

// Query pages through decisions, newest first.
type Query struct {
	Outcome string
	Limit   int
	Offset  int
}

func (q Query) normalized() Query {
	if q.Limit <= 0 || q.Limit > constants.MaxLimit {
		q.Limit = constants.DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

type Reader interface {
	ListByWorkflow(ctx context.Context, workflowID string, q Query) ([]workflow.Decision, error)
	ListByBooking(ctx context.Context, bookingID string, q Query) ([]workflow.Decision, error)
}

// Store keeps workflow decisions in MongoDB.
type Store struct {
	collection  *mongo.Collection
	serviceName string
}

func NewStore(db *mongo.Database, serviceName string) *Store {
	return &Store{
		collection:  db.Collection(constants.DecisionsCollection),
		serviceName: serviceName,
	}
}

func (s *Store) Record(ctx context.Context, decisions []workflow.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	docs := make([]interface{}, len(decisions))
	for i := range decisions {
		docs[i] = decisions[i]
	}

	start := time.Now()
	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	s.observe("insert", start, err)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert decisions: %w", err)
	}
	return nil
}

func (s *Store) ListByWorkflow(ctx context.Context, workflowID string, q Query) ([]workflow.Decision, error) {
	return s.find(ctx, bson.M{"workflow_id": workflowID}, q)
}

func (s *Store) ListByBooking(ctx context.Context, bookingID string, q Query) ([]workflow.Decision, error) {
	return s.find(ctx, bson.M{"booking_id": bookingID}, q)
}

func (s *Store) find(ctx context.Context, filter bson.M, q Query) ([]workflow.Decision, error) {
	q = q.normalized()
	if q.Outcome != "" {
		filter["outcome"] = q.Outcome
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "decided_at", Value: -1}, {Key: "step_number", Value: 1}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	start := time.Now()
	cursor, err := s.collection.Find(ctx, filter, opts)
	s.observe("find", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to find decisions: %w", err)
	}
	defer cursor.Close(ctx)

	decisions := make([]workflow.Decision, 0)
	if err := cursor.All(ctx, &decisions); err != nil {
		return nil, fmt.Errorf("failed to decode decisions: %w", err)
	}
	return decisions, nil
}

func (s *Store) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(s.serviceName, "mongodb", operation, status)
	metrics.ObserveDatabaseQueryDuration(s.serviceName, "mongodb", operation, time.Since(start))
}
