package listing

import (
	"math"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Phase is the lifecycle phase of a listing, derived from its end time and the clock
type Phase string

const (
	PhaseNotAuction Phase = "not_auction"
	PhaseOpen       Phase = "open"
	PhaseEnded      Phase = "ended"
)

// Status is the phase refined with the auction outcome
type Status string

const (
	StatusNotAuction Status = "not_auction"
	StatusOpen       Status = "open"
	StatusSold       Status = "sold"
	StatusUnsold     Status = "unsold"
)

// Day is the unit sellers choose auction lengths in
const Day = 24 * time.Hour

// MaxAuctionDays bounds how long an auction can run
const MaxAuctionDays = 365

// DurationFromDays converts a possibly fractional number of days into an
// auction length. Zero stays zero, which relisting reads as "reuse the original length".
func DurationFromDays(days float64) (time.Duration, error) {
	if math.IsNaN(days) || days < 0 || days > MaxAuctionDays {
		return 0, shared.ErrInvalidDuration
	}
	return time.Duration(days * float64(Day)), nil
}

// Listing represents an item offered for sale, at a fixed price or by auction.
// Prices are in currency minor units.
type Listing struct {
	ID              uuid.UUID     `json:"id"`
	SellerID        uuid.UUID     `json:"seller_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	BrandName       string        `json:"brand_name,omitempty"`
	Price           int64         `json:"price"`
	BasePrice       int64         `json:"base_price"`
	ReservePrice    *int64        `json:"reserve_price,omitempty"`
	IsAuction       bool          `json:"is_auction"`
	AuctionEndTime  *time.Time    `json:"auction_end_time,omitempty"`
	AuctionDuration time.Duration `json:"auction_duration"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewAuction creates an auction listing that stays open for durationDays from now
func NewAuction(sellerID uuid.UUID, basePrice int64, reservePrice *int64, durationDays int, now time.Time) (*Listing, error) {
	if durationDays <= 0 || durationDays > MaxAuctionDays {
		return nil, shared.ErrInvalidDuration
	}
	if basePrice < 0 || (reservePrice != nil && *reservePrice < 0) {
		return nil, shared.ErrInvalidPrice
	}

	duration := time.Duration(durationDays) * Day
	endTime := now.Add(duration)

	return &Listing{
		ID:              uuid.New(),
		SellerID:        sellerID,
		BasePrice:       basePrice,
		ReservePrice:    reservePrice,
		IsAuction:       true,
		AuctionEndTime:  &endTime,
		AuctionDuration: duration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// NewFixedPrice creates a listing sold at a fixed price
func NewFixedPrice(sellerID uuid.UUID, price int64, now time.Time) (*Listing, error) {
	if price < 0 {
		return nil, shared.ErrInvalidPrice
	}

	return &Listing{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks the stored fields are consistent
func (l *Listing) Validate() error {
	if !l.IsAuction && l.AuctionEndTime != nil {
		return shared.ErrInvalidListing
	}
	if l.Price < 0 || l.BasePrice < 0 || (l.ReservePrice != nil && *l.ReservePrice < 0) {
		return shared.ErrInvalidPrice
	}
	return nil
}

// Phase derives the lifecycle phase at now. It never mutates the listing.
func (l *Listing) Phase(now time.Time) Phase {
	if !l.IsAuction || l.AuctionEndTime == nil {
		return PhaseNotAuction
	}
	if l.AuctionEndTime.After(now) {
		return PhaseOpen
	}
	return PhaseEnded
}

// IsOpen returns true if the listing is an auction still accepting bids
func (l *Listing) IsOpen(now time.Time) bool {
	return l.Phase(now) == PhaseOpen
}

// IsEnded returns true if the listing is an auction past its end time
func (l *Listing) IsEnded(now time.Time) bool {
	return l.Phase(now) == PhaseEnded
}

// IsActive returns true if the listing should be shown as available:
// every fixed-price listing and every open auction.
func (l *Listing) IsActive(now time.Time) bool {
	return l.Phase(now) != PhaseEnded
}

// MeetsReserve returns true if amount satisfies the reserve price, or there is none
func (l *Listing) MeetsReserve(amount int64) bool {
	return l.ReservePrice == nil || amount >= *l.ReservePrice
}

// Status derives the full status at now given the current winning bid (may be nil)
func (l *Listing) Status(now time.Time, winning *bid.Bid) Status {
	switch l.Phase(now) {
	case PhaseNotAuction:
		return StatusNotAuction
	case PhaseOpen:
		return StatusOpen
	}
	if winning != nil && !winning.IsVoid() && l.MeetsReserve(winning.Amount) {
		return StatusSold
	}
	return StatusUnsold
}

// Floor returns the amount a new bid must strictly exceed
func (l *Listing) Floor(highest *bid.Bid) int64 {
	floor := l.BasePrice
	if highest != nil && highest.Amount > floor {
		floor = highest.Amount
	}
	if floor < 0 {
		return 0
	}
	return floor
}

// CurrentPrice is the price shown for display: the winning amount or the opening price
func (l *Listing) CurrentPrice(highest *bid.Bid) int64 {
	if !l.IsAuction {
		return l.Price
	}
	if highest != nil {
		return highest.Amount
	}
	return l.BasePrice
}

// Relist reopens an ended auction for duration from now. A non-positive
// duration reuses the length the seller originally chose.
func (l *Listing) Relist(duration time.Duration, now time.Time) error {
	if l.Phase(now) != PhaseEnded {
		return shared.ErrNotEnded
	}
	if duration <= 0 {
		duration = l.AuctionDuration
	}
	if duration <= 0 || duration > MaxAuctionDays*Day {
		return shared.ErrInvalidDuration
	}

	endTime := now.Add(duration)
	l.AuctionEndTime = &endTime
	l.UpdatedAt = now
	return nil
}

// UpdateEndTime moves the end of an open auction
func (l *Listing) UpdateEndTime(endTime time.Time, now time.Time) error {
	if l.Phase(now) != PhaseOpen {
		return shared.ErrNotOpen
	}
	l.AuctionEndTime = &endTime
	l.UpdatedAt = now
	return nil
}
