package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// BidLedger keeps bids in process memory. Each listing has its own shard so
// appends for different listings never wait on each other.
type BidLedger struct {
	mu     sync.RWMutex
	shards map[uuid.UUID]*ledgerShard // listingID -> bids
	index  map[uuid.UUID]uuid.UUID    // bidID -> listingID
}

type ledgerShard struct {
	mu   sync.Mutex
	bids []*bid.Bid
}

// NewBidLedger creates an empty ledger
func NewBidLedger() *BidLedger {
	return &BidLedger{
		shards: make(map[uuid.UUID]*ledgerShard),
		index:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (l *BidLedger) shard(listingID uuid.UUID, create bool) *ledgerShard {
	l.mu.RLock()
	s, exists := l.shards[listingID]
	l.mu.RUnlock()
	if exists || !create {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, exists = l.shards[listingID]; !exists {
		s = &ledgerShard{}
		l.shards[listingID] = s
	}
	return s
}

// winning returns the winning bid of the shard. Caller holds s.mu.
func (s *ledgerShard) winning() (*bid.Bid, error) {
	var winning *bid.Bid
	for _, b := range s.bids {
		if !b.IsWinning() {
			continue
		}
		if winning != nil {
			return nil, shared.ErrLedgerCorrupted
		}
		winning = b
	}
	return winning, nil
}

// HighestBid returns the current winning bid
func (l *BidLedger) HighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	s := l.shard(listingID, false)
	if s == nil {
		return nil, shared.ErrNoBidsFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	winning, err := s.winning()
	if err != nil {
		return nil, err
	}
	if winning == nil {
		return nil, shared.ErrNoBidsFound
	}
	c := *winning
	return &c, nil
}

// Append stores b as the winning bid if the ledger still has expectedWinning as its winner
func (l *BidLedger) Append(ctx context.Context, b *bid.Bid, expectedWinning *uuid.UUID) error {
	l.mu.RLock()
	_, duplicate := l.index[b.ID]
	l.mu.RUnlock()
	if duplicate {
		return fmt.Errorf("bid %s already recorded", b.ID)
	}

	s := l.shard(b.ListingID, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.winning()
	if err != nil {
		return err
	}
	if !sameBid(current, expectedWinning) {
		return shared.ErrLedgerConflict
	}

	if current != nil {
		current.MarkOutbid(b.PlacedAt)
	}
	b.MarkWinning(b.PlacedAt)
	stored := *b
	s.bids = append(s.bids, &stored)

	l.mu.Lock()
	l.index[b.ID] = b.ListingID
	l.mu.Unlock()

	return nil
}

// BidsFor returns a snapshot of the listing's bids, highest first
func (l *BidLedger) BidsFor(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	s := l.shard(listingID, false)
	if s == nil {
		return []*bid.Bid{}, nil
	}

	s.mu.Lock()
	bids := make([]*bid.Bid, 0, len(s.bids))
	for _, b := range s.bids {
		c := *b
		bids = append(bids, &c)
	}
	s.mu.Unlock()

	bid.SortForDisplay(bids)
	return bids, nil
}

// CountFor returns the number of bids recorded for the listing
func (l *BidLedger) CountFor(ctx context.Context, listingID uuid.UUID) (int, error) {
	s := l.shard(listingID, false)
	if s == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bids), nil
}

// GetByID retrieves a bid by ID
func (l *BidLedger) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	s, err := l.shardOf(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bids {
		if b.ID == id {
			c := *b
			return &c, nil
		}
	}
	return nil, shared.ErrBidNotFound
}

// Void marks a bid void and promotes the best remaining bid if it was winning
func (l *BidLedger) Void(ctx context.Context, id uuid.UUID, at time.Time) (*bid.Bid, error) {
	s, err := l.shardOf(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *bid.Bid
	for _, b := range s.bids {
		if b.ID == id {
			target = b
			break
		}
	}
	if target == nil {
		return nil, shared.ErrBidNotFound
	}

	if _, err := s.winning(); err != nil {
		return nil, err
	}

	wasWinning := target.IsWinning()
	target.MarkVoid(at)

	if wasWinning {
		if next := bid.Best(s.bids); next != nil {
			next.MarkWinning(at)
		}
	}

	winning, err := s.winning()
	if err != nil || winning == nil {
		return nil, err
	}
	c := *winning
	return &c, nil
}

// DeleteFor removes every bid of a listing
func (l *BidLedger) DeleteFor(ctx context.Context, listingID uuid.UUID) error {
	// shard locks are always taken before l.mu, never inside it
	l.mu.Lock()
	s, exists := l.shards[listingID]
	delete(l.shards, listingID)
	l.mu.Unlock()
	if !exists {
		return nil
	}

	s.mu.Lock()
	bids := s.bids
	s.bids = nil
	s.mu.Unlock()

	l.mu.Lock()
	for _, b := range bids {
		delete(l.index, b.ID)
	}
	l.mu.Unlock()
	return nil
}

func (l *BidLedger) shardOf(bidID uuid.UUID) (*ledgerShard, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	listingID, exists := l.index[bidID]
	if !exists {
		return nil, shared.ErrBidNotFound
	}
	s, exists := l.shards[listingID]
	if !exists {
		return nil, shared.ErrBidNotFound
	}
	return s, nil
}

func sameBid(current *bid.Bid, expected *uuid.UUID) bool {
	if current == nil || expected == nil {
		return current == nil && expected == nil
	}
	return current.ID == *expected
}
