package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeAuctionCreated  EventType = "auction.created"
	EventTypeBidPlaced       EventType = "bid.placed"
	EventTypeBidVoided       EventType = "bid.voided"
	EventTypeAuctionRelisted EventType = "auction.relisted"
	EventTypeAuctionUpdated  EventType = "auction.updated"
	EventTypeListingDeleted  EventType = "listing.deleted"
)

// Event represents a broadcast event
type Event struct {
	Type      EventType              `json:"type"`
	ListingID uuid.UUID              `json:"listing_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster defines the interface for broadcasting events
type Broadcaster interface {
	// Subscribe subscribes a client to events for a specific listing
	// When a client subscribes to multiple listings, all events are delivered to the same channel
	Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from events for a specific listing
	Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error

	// Publish publishes an event to all subscribers of a listing
	Publish(ctx context.Context, listingID uuid.UUID, event Event) error

	// IsSubscribed checks if a client is subscribed to a listing
	IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool
}
