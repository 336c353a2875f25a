package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookflow/internal/constants"
)

// EnsureMongoCollections creates the indexes of the decision log and the organizer
// directory. Collections themselves are created on first insert.
func EnsureMongoCollections(ctx context.Context, db *mongo.Database) error {
	decisionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workflow_id", Value: 1}, {Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_workflow_decided_at"),
		},
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}, {Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_booking_decided_at"),
		},
		{
			Keys:    bson.D{{Key: "outcome", Value: 1}},
			Options: options.Index().SetName("idx_decisions_outcome"),
		},
	}
	if err := createIndexes(ctx, db.Collection(constants.DecisionsCollection), decisionIndexes); err != nil {
		return err
	}

	organizerIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "company", Value: 1}},
			Options: options.Index().SetName("idx_organizers_company"),
		},
	}
	return createIndexes(ctx, db.Collection(constants.OrganizersCollection), organizerIndexes)
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection.Name(), err)
	}
	return nil
}
