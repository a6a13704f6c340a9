package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BidRecord is the archival copy of an accepted bid
type BidRecord struct {
	EventID       uuid.UUID  `json:"event_id"`
	BidID         uuid.UUID  `json:"bid_id"`
	ListingID     uuid.UUID  `json:"listing_id"`
	BidderID      uuid.UUID  `json:"bidder_id"`
	Amount        int64      `json:"amount"`
	PreviousBidID *uuid.UUID `json:"previous_bid_id,omitempty"`
	PreviousBid   int64      `json:"previous_bid"`
	PlacedAt      time.Time  `json:"placed_at"`
}

// BidArchive receives accepted bids for durable downstream storage
type BidArchive interface {
	Archive(ctx context.Context, record BidRecord) error
}
