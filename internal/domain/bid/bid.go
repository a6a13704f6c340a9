package bid

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status represents the status of a bid
type Status string

const (
	StatusActive  Status = "active"
	StatusOutbid  Status = "outbid"
	StatusWinning Status = "winning"
	StatusVoid    Status = "void"
)

// Bid represents a bid on an auction listing. Amount is in currency minor units.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	Status    Status    `json:"status"`
	PlacedAt  time.Time `json:"placed_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active bid placed at the given time
func New(listingID, bidderID uuid.UUID, amount int64, placedAt time.Time) *Bid {
	return &Bid{
		ID:        uuid.New(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    StatusActive,
		PlacedAt:  placedAt,
		UpdatedAt: placedAt,
	}
}

// IsWinning returns true if the bid currently holds the listing
func (b *Bid) IsWinning() bool {
	return b.Status == StatusWinning
}

// IsVoid returns true if the bid was voided and no longer counts
func (b *Bid) IsVoid() bool {
	return b.Status == StatusVoid
}

// MarkWinning marks the bid as the current winning bid
func (b *Bid) MarkWinning(at time.Time) {
	b.Status = StatusWinning
	b.UpdatedAt = at
}

// MarkOutbid marks the bid as superseded by a higher one
func (b *Bid) MarkOutbid(at time.Time) {
	b.Status = StatusOutbid
	b.UpdatedAt = at
}

// MarkVoid removes the bid from contention
func (b *Bid) MarkVoid(at time.Time) {
	b.Status = StatusVoid
	b.UpdatedAt = at
}

// Less orders bids by amount descending. Equal amounts keep the earlier bid
// first; the ID only breaks exact ties so the order is total.
func Less(a, b *Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.ID.String() < b.ID.String()
}

// SortForDisplay sorts bids in place, highest first
func SortForDisplay(bids []*Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		return Less(bids[i], bids[j])
	})
}

// Best returns the highest non-void bid, or nil
func Best(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if b.IsVoid() {
			continue
		}
		if best == nil || Less(b, best) {
			best = b
		}
	}
	return best
}
