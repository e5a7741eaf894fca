package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rasta-market-bot/internal/database/models"
)

const listingLogCollectionName = "listing_logs"

// MongoListingRepository implements ListingLogger for MongoDB.
type MongoListingRepository struct {
	collection *mongo.Collection
}

// NewMongoListingRepository creates a new MongoDB listing archive repository.
func NewMongoListingRepository(db *mongo.Database) *MongoListingRepository {
	return &MongoListingRepository{
		collection: db.Collection(listingLogCollectionName),
	}
}

// LogListingDecision inserts one archive document for a resolved listing.
func (r *MongoListingRepository) LogListingDecision(ctx context.Context, entry models.ListingLog) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.ReviewedAt.IsZero() {
		entry.ReviewedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert listing log for listing %s: %w", entry.ListingID, err)
	}
	return nil
}
