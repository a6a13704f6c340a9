package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var placedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func appendBid(t *testing.T, ledger *BidLedger, listingID uuid.UUID, amount int64, expected *uuid.UUID) *bid.Bid {
	t.Helper()
	b := bid.New(listingID, uuid.New(), amount, placedAt)
	assert.NoError(t, ledger.Append(context.Background(), b, expected))
	return b
}

func TestBidLedger_AppendOutbidsPrevious(t *testing.T) {
	ctx := context.Background()
	ledger := NewBidLedger()
	listingID := uuid.New()

	_, err := ledger.HighestBid(ctx, listingID)
	check.True(t, errors.Is(err, shared.ErrNoBidsFound))

	first := appendBid(t, ledger, listingID, 150, nil)
	second := appendBid(t, ledger, listingID, 200, &first.ID)

	highest, err := ledger.HighestBid(ctx, listingID)
	assert.NoError(t, err)
	check.Equal(t, second.ID, highest.ID)

	bids, err := ledger.BidsFor(ctx, listingID)
	assert.NoError(t, err)
	check.Equal(t, 2, len(bids))
	check.Equal(t, bid.StatusWinning, bids[0].Status)
	check.Equal(t, bid.StatusOutbid, bids[1].Status)

	// snapshots are copies
	bids[0].Status = bid.StatusVoid
	again, err := ledger.HighestBid(ctx, listingID)
	assert.NoError(t, err)
	check.Equal(t, bid.StatusWinning, again.Status)
}

func TestBidLedger_AppendCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	ledger := NewBidLedger()
	listingID := uuid.New()
	first := appendBid(t, ledger, listingID, 150, nil)

	stale := uuid.New()
	tests := []struct {
		name     string
		expected *uuid.UUID
	}{
		{name: "expected none", expected: nil},
		{name: "expected another bid", expected: &stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bid.New(listingID, uuid.New(), 300, placedAt)
			err := ledger.Append(ctx, b, tt.expected)
			check.True(t, errors.Is(err, shared.ErrLedgerConflict))
		})
	}

	count, err := ledger.CountFor(ctx, listingID)
	assert.NoError(t, err)
	check.Equal(t, 1, count)

	highest, err := ledger.HighestBid(ctx, listingID)
	assert.NoError(t, err)
	check.Equal(t, first.ID, highest.ID)

	err = ledger.Append(ctx, first, &first.ID)
	check.Error(t, err)
}

func TestBidLedger_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	ledger := NewBidLedger()
	listingID := uuid.New()
	first := appendBid(t, ledger, listingID, 150, nil)

	s := ledger.shard(listingID, false)
	rogue := bid.New(listingID, uuid.New(), 160, placedAt)
	rogue.MarkWinning(placedAt)
	s.bids = append(s.bids, rogue)

	_, err := ledger.HighestBid(ctx, listingID)
	check.True(t, errors.Is(err, shared.ErrLedgerCorrupted))

	err = ledger.Append(ctx, bid.New(listingID, uuid.New(), 200, placedAt), &first.ID)
	check.True(t, errors.Is(err, shared.ErrLedgerCorrupted))
}

func TestBidLedger_Void(t *testing.T) {
	ctx := context.Background()
	ledger := NewBidLedger()
	listingID := uuid.New()

	low := appendBid(t, ledger, listingID, 150, nil)
	high := appendBid(t, ledger, listingID, 200, &low.ID)

	winner, err := ledger.Void(ctx, low.ID, placedAt)
	assert.NoError(t, err)
	check.Equal(t, high.ID, winner.ID)

	winner, err = ledger.Void(ctx, high.ID, placedAt)
	assert.NoError(t, err)
	check.True(t, winner == nil)

	_, err = ledger.HighestBid(ctx, listingID)
	check.True(t, errors.Is(err, shared.ErrNoBidsFound))

	count, err := ledger.CountFor(ctx, listingID)
	assert.NoError(t, err)
	check.Equal(t, 2, count)

	_, err = ledger.Void(ctx, uuid.New(), placedAt)
	check.True(t, errors.Is(err, shared.ErrBidNotFound))
}

func TestBidLedger_DeleteFor(t *testing.T) {
	ctx := context.Background()
	ledger := NewBidLedger()
	listingID := uuid.New()
	other := uuid.New()

	b := appendBid(t, ledger, listingID, 150, nil)
	kept := appendBid(t, ledger, other, 150, nil)

	assert.NoError(t, ledger.DeleteFor(ctx, listingID))
	assert.NoError(t, ledger.DeleteFor(ctx, listingID))

	_, err := ledger.GetByID(ctx, b.ID)
	check.True(t, errors.Is(err, shared.ErrBidNotFound))

	got, err := ledger.GetByID(ctx, kept.ID)
	assert.NoError(t, err)
	check.Equal(t, kept.ID, got.ID)
}
