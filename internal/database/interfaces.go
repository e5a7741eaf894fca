package database

import (
	"context"

	"rasta-market-bot/internal/database/models"
)

// ListingLogger defines the interface for archiving resolved listings.
type ListingLogger interface {
	// LogListingDecision writes one archive document per moderator decision.
	LogListingDecision(ctx context.Context, entry models.ListingLog) error
}

// UserActionLogger defines the interface for logging user actions.
type UserActionLogger interface {
	LogUserAction(userID int64, action string, details interface{}) error
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// UpdateUser updates or creates a user record in the database.
	UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, isAdmin bool, action string) error
}
