package directory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookflow/internal/constants"
	"bookflow/pkg/models"
)

type organizerDocument struct {
	ID      string `bson:"_id"`
	Name    string `bson:"name,omitempty"`
	Email   string `bson:"email,omitempty"`
	Company string `bson:"company,omitempty"`
}

func (d organizerDocument) toModel() *models.Organizer {
	return &models.Organizer{ID: d.ID, Name: d.Name, Email: d.Email, Company: d.Company}
}

type MongoSource struct {
	collection *mongo.Collection
}

func NewMongoSource(db *mongo.Database) *MongoSource {
	return &MongoSource{collection: db.Collection(constants.OrganizersCollection)}
}

func (s *MongoSource) Lookup(ctx context.Context, organizerID string) (*models.Organizer, error) {
	var doc organizerDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": organizerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb organizer lookup failed: %w", err)
	}
	return doc.toModel(), nil
}

// Upsert stores an organizer record, replacing any existing one with the same id.
func (s *MongoSource) Upsert(ctx context.Context, org models.Organizer) error {
	if org.ID == "" {
		return fmt.Errorf("organizer id is required")
	}
	doc := organizerDocument{ID: org.ID, Name: org.Name, Email: org.Email, Company: org.Company}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": org.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert organizer: %w", err)
	}
	return nil
}
