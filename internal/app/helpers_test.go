package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"hammerdrop-auction-service/internal/adapters/clock"
	"hammerdrop-auction-service/internal/adapters/memory"
	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/ports/inbound"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock       *clock.Manual
	listings    *memory.ListingRepository
	ledger      outbound.BidLedger
	broadcaster *recordingBroadcaster
	archive     *recordingArchive
	listingSvc  *ListingService
	bidSvc      *BidService
	catalogSvc  *CatalogService
}

type fixtureOption func(*BidServiceParams)

func withLedger(ledger outbound.BidLedger) fixtureOption {
	return func(p *BidServiceParams) { p.BidLedger = ledger }
}

func withSelfOutbid(allow bool) fixtureOption {
	return func(p *BidServiceParams) { p.AllowSelfOutbid = allow }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		clock:       clock.NewManual(testStart),
		listings:    memory.NewListingRepository(),
		broadcaster: &recordingBroadcaster{},
		archive:     &recordingArchive{},
	}
	locks := NewListingLocks()

	params := BidServiceParams{
		ListingRepo:     f.listings,
		BidLedger:       memory.NewBidLedger(),
		Broadcaster:     f.broadcaster,
		Archive:         f.archive,
		Clock:           f.clock,
		Locks:           locks,
		AllowSelfOutbid: true,
		Logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&params)
	}
	f.ledger = params.BidLedger
	f.bidSvc = NewBidService(params)

	f.listingSvc = NewListingService(ListingServiceParams{
		ListingRepo: f.listings,
		BidLedger:   f.ledger,
		Broadcaster: f.broadcaster,
		Clock:       f.clock,
		Locks:       locks,
		Logger:      zerolog.Nop(),
	})
	f.catalogSvc = NewCatalogService(CatalogServiceParams{
		ListingRepo: f.listings,
		BidLedger:   f.ledger,
		Clock:       f.clock,
		Logger:      zerolog.Nop(),
	})
	return f
}

func (f *fixture) auction(t *testing.T, basePrice int64, reserve *int64, days int) *listing.Listing {
	t.Helper()
	l, err := f.listingSvc.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		SellerID:     uuid.New(),
		Title:        "Vintage camera",
		BasePrice:    basePrice,
		ReservePrice: reserve,
		DurationDays: days,
	})
	assert.NoError(t, err)
	return l
}

func (f *fixture) bid(ctx context.Context, listingID, bidderID uuid.UUID, amount int64) (*bid.Bid, error) {
	return f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
	})
}

// winningCount counts winning bids straight from the ledger
func (f *fixture) winningCount(t *testing.T, listingID uuid.UUID) int {
	t.Helper()
	bids, err := f.ledger.BidsFor(context.Background(), listingID)
	assert.NoError(t, err)
	count := 0
	for _, b := range bids {
		if b.IsWinning() {
			count++
		}
	}
	return count
}

func int64Ptr(v int64) *int64 {
	return &v
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (r *recordingBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (r *recordingBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error {
	return nil
}

func (r *recordingBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingBroadcaster) IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool {
	return false
}

func (r *recordingBroadcaster) types() []outbound.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]outbound.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type recordingArchive struct {
	mu      sync.Mutex
	records []outbound.BidRecord
}

func (r *recordingArchive) Archive(ctx context.Context, record outbound.BidRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// racingLedger slips a competing bid into the ledger before the first
// conflicts appends, as another process sharing the database would.
type racingLedger struct {
	outbound.BidLedger
	mu        sync.Mutex
	conflicts int
	rival     func(listingID uuid.UUID) *bid.Bid
}

func (r *racingLedger) Append(ctx context.Context, b *bid.Bid, expectedWinning *uuid.UUID) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()

		current, _ := r.BidLedger.HighestBid(ctx, b.ListingID)
		var expected *uuid.UUID
		if current != nil {
			id := current.ID
			expected = &id
		}
		if err := r.BidLedger.Append(ctx, r.rival(b.ListingID), expected); err != nil {
			return err
		}
	} else {
		r.mu.Unlock()
	}
	return r.BidLedger.Append(ctx, b, expectedWinning)
}

// brokenLedger reports whatever error it is given for every read
type brokenLedger struct {
	outbound.BidLedger
	err error
}

func (b *brokenLedger) HighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	return nil, b.err
}
