package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Listing decision statuses stored in the archive.
const (
	ListingStatusApproved = "approved"
	ListingStatusRejected = "rejected"
)

// ListingLog is the archive record of a resolved listing.
// The live submission workflow is memory-resident; one document is written
// here per moderator decision.
type ListingLog struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ListingID      string             `bson:"listing_id"`
	SellerID       int64              `bson:"seller_id"`
	SellerUsername string             `bson:"seller_username,omitempty"`
	City           string             `bson:"city"`
	Price          int64              `bson:"price"`
	Condition      string             `bson:"condition"`
	PhotoIDs       []string           `bson:"photo_ids"`
	VideoID        string             `bson:"video_id"`
	Status         string             `bson:"status"` // "approved" or "rejected"
	ReviewedBy     int64              `bson:"reviewed_by"`
	SubmittedAt    time.Time          `bson:"submitted_at"`
	ReviewedAt     time.Time          `bson:"reviewed_at"`
	GroupID        int64              `bson:"group_id,omitempty"` // publish target, set on approval
}
