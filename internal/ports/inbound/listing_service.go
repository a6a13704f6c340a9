package inbound

import (
	"context"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/listing"

	"github.com/google/uuid"
)

// ListingService defines the auction lifecycle and listing management operations
type ListingService interface {
	// CreateAuction creates an auction listing open for the requested number of days
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*listing.Listing, error)

	// CreateFixedPriceListing creates a listing sold at a fixed price
	CreateFixedPriceListing(ctx context.Context, req CreateFixedPriceRequest) (*listing.Listing, error)

	// GetListing retrieves a listing by ID
	GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)

	// Relist reopens an ended auction
	Relist(ctx context.Context, req RelistRequest) (*listing.Listing, error)

	// UpdateEndTime moves the end time of an open auction
	UpdateEndTime(ctx context.Context, listingID uuid.UUID, endTime time.Time) (*listing.Listing, error)

	// UpdateDetails edits the descriptive and price fields of a listing
	UpdateDetails(ctx context.Context, req UpdateDetailsRequest) (*listing.Listing, error)

	// DeleteListing deletes a listing together with its bids
	DeleteListing(ctx context.Context, listingID uuid.UUID) error
}

// BidService defines the bid admission and ledger read operations
type BidService interface {
	// PlaceBid admits or rejects a bid on an auction listing
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// GetBids retrieves the bids of a listing, highest first
	GetBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// GetHighestBid retrieves the winning bid of a listing
	GetHighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error)

	// GetBid retrieves a bid by ID
	GetBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error)

	// VoidBid takes a bid out of contention
	VoidBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error)
}

// CatalogService defines the read-side listing views
type CatalogService interface {
	// ActiveListings returns fixed-price listings and open auctions
	ActiveListings(ctx context.Context) ([]*listing.Listing, error)

	// EndedAuctions returns auctions past their end time
	EndedAuctions(ctx context.Context) ([]*listing.Listing, error)

	// ListingDetails returns a listing with its derived status and bidding summary
	ListingDetails(ctx context.Context, listingID uuid.UUID) (*ListingDetails, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	SellerID     uuid.UUID `json:"seller_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	BrandName    string    `json:"brand_name"`
	BasePrice    int64     `json:"base_price"`
	ReservePrice *int64    `json:"reserve_price,omitempty"`
	DurationDays int       `json:"duration_days"`
}

// request to create a fixed-price listing
type CreateFixedPriceRequest struct {
	SellerID    uuid.UUID `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	BrandName   string    `json:"brand_name"`
	Price       int64     `json:"price"`
}

// request to relist an ended auction. A zero Duration reuses the original auction length.
type RelistRequest struct {
	ListingID uuid.UUID     `json:"listing_id"`
	Duration  time.Duration `json:"duration"`
}

// request to edit a listing; nil fields are left unchanged
type UpdateDetailsRequest struct {
	ListingID    uuid.UUID `json:"listing_id"`
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	BrandName    *string   `json:"brand_name,omitempty"`
	Price        *int64    `json:"price,omitempty"`
	BasePrice    *int64    `json:"base_price,omitempty"`
	ReservePrice *int64    `json:"reserve_price,omitempty"`
}

// request to place a bid
type PlaceBidRequest struct {
	ListingID uuid.UUID `json:"listing_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
}

// ListingDetails is the display view of a single listing
type ListingDetails struct {
	Listing      *listing.Listing `json:"listing"`
	Status       listing.Status   `json:"status"`
	CurrentPrice int64            `json:"current_price"`
	BidCount     int              `json:"bid_count"`
	WinningBid   *bid.Bid         `json:"winning_bid,omitempty"`
}
