package shared

import "errors"

// Domain-specific errors
var (
	// Listing and lifecycle errors
	ErrListingNotFound  = errors.New("listing not found")
	ErrNotAnAuction     = errors.New("listing is not an auction")
	ErrAuctionEnded     = errors.New("auction has ended")
	ErrInvalidDuration  = errors.New("auction duration must be between 1 and 365 days")
	ErrInvalidPrice     = errors.New("price cannot be negative")
	ErrNotEnded         = errors.New("auction has not ended")
	ErrNotOpen          = errors.New("auction is not open")
	ErrInvalidListing   = errors.New("fixed-price listing cannot have an auction end time")
	ErrSellerIDRequired = errors.New("seller_id is required")
	ErrNotSeller        = errors.New("only the seller can change this listing")

	// Bid errors
	ErrBidTooLow      = errors.New("bid amount must be higher than the current bid")
	ErrAlreadyWinning = errors.New("bidder already holds the winning bid")
	ErrBidNotFound    = errors.New("bid not found")
	ErrNoBidsFound    = errors.New("no bids found")

	// Validation errors
	ErrInvalidAmount     = errors.New("valid amount is required")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidRequest    = errors.New("invalid request")

	// Ledger errors
	ErrLedgerConflict  = errors.New("ledger changed concurrently")
	ErrLedgerCorrupted = errors.New("ledger corrupted: more than one winning bid")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrListingIDRequired   = errors.New("listing_id is required")
	ErrDurationRequired    = errors.New("duration_days is required")
	ErrUnknownMessageType  = errors.New("unknown message type")

	// Broadcasting errors
	ErrBroadcastFailed = errors.New("broadcast failed")

	// WebSocket handler specific errors
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
)

// rejections are the expected outcomes of validating caller input against
// listing and ledger state.
var rejections = []error{
	ErrListingNotFound,
	ErrNotAnAuction,
	ErrAuctionEnded,
	ErrInvalidDuration,
	ErrInvalidPrice,
	ErrNotEnded,
	ErrNotOpen,
	ErrInvalidListing,
	ErrSellerIDRequired,
	ErrNotSeller,
	ErrBidTooLow,
	ErrAlreadyWinning,
	ErrBidNotFound,
	ErrInvalidAmount,
	ErrInvalidTimeFormat,
	ErrInvalidRequest,
}

// IsRejection reports whether err is a caller-facing rejection rather than a
// failure of the system itself. Ledger corruption, storage failures and
// exhausted ledger conflicts are never rejections.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	for _, rejection := range rejections {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
