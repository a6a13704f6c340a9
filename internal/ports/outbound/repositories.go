package outbound

import (
	"context"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/listing"

	"github.com/google/uuid"
)

// ListingRepository defines the interface for listing data operations
type ListingRepository interface {
	// Create stores a new listing
	Create(ctx context.Context, listing *listing.Listing) error

	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error)

	// List retrieves every listing, newest first
	List(ctx context.Context) ([]*listing.Listing, error)

	// Update replaces the stored listing fields
	Update(ctx context.Context, listing *listing.Listing) error

	// Delete deletes a listing
	Delete(ctx context.Context, id uuid.UUID) error
}

// BidLedger is the append-only store of bids. Bids are never removed except
// by DeleteFor when their listing is deleted.
type BidLedger interface {
	// HighestBid returns the current winning bid, or shared.ErrNoBidsFound
	HighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error)

	// Append stores b as the winning bid and marks the previous winner outbid.
	// expectedWinning is the ID of the winning bid the caller validated
	// against (nil when there was none); if the ledger no longer agrees the
	// append fails with shared.ErrLedgerConflict and nothing is written.
	Append(ctx context.Context, b *bid.Bid, expectedWinning *uuid.UUID) error

	// BidsFor returns a snapshot of the listing's bids, highest first
	BidsFor(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// CountFor returns the number of bids recorded for the listing
	CountFor(ctx context.Context, listingID uuid.UUID) (int, error)

	// GetByID retrieves a bid by ID
	GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error)

	// Void marks a bid void and, if it was winning, promotes the best
	// remaining bid. It returns the new winning bid, or nil if none is left.
	Void(ctx context.Context, id uuid.UUID, at time.Time) (*bid.Bid, error)

	// DeleteFor removes every bid of a listing
	DeleteFor(ctx context.Context, listingID uuid.UUID) error
}
