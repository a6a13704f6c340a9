package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"hammerdrop-auction-service/internal/adapters/memory"
	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/inbound"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func TestCreateAuction(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     inbound.CreateAuctionRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  inbound.CreateAuctionRequest{SellerID: uuid.New(), BasePrice: 100, DurationDays: 7},
		},
		{
			name:    "zero duration",
			req:     inbound.CreateAuctionRequest{SellerID: uuid.New(), BasePrice: 100, DurationDays: 0},
			wantErr: shared.ErrInvalidDuration,
		},
		{
			name:    "negative duration",
			req:     inbound.CreateAuctionRequest{SellerID: uuid.New(), BasePrice: 100, DurationDays: -2},
			wantErr: shared.ErrInvalidDuration,
		},
		{
			name:    "negative reserve",
			req:     inbound.CreateAuctionRequest{SellerID: uuid.New(), ReservePrice: int64Ptr(-1), DurationDays: 1},
			wantErr: shared.ErrInvalidPrice,
		},
		{
			name:    "missing seller",
			req:     inbound.CreateAuctionRequest{BasePrice: 100, DurationDays: 1},
			wantErr: shared.ErrSellerIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			l, err := f.listingSvc.CreateAuction(ctx, tt.req)
			if tt.wantErr != nil {
				check.True(t, errors.Is(err, tt.wantErr))
				check.Nil(t, l)
				return
			}

			assert.NoError(t, err)
			check.True(t, l.IsAuction)
			check.Equal(t, testStart.Add(time.Duration(tt.req.DurationDays)*listing.Day), *l.AuctionEndTime)
			check.Equal(t, listing.PhaseOpen, l.Phase(f.clock.Now()))

			stored, err := f.listingSvc.GetListing(ctx, l.ID)
			assert.NoError(t, err)
			check.Equal(t, l.ID, stored.ID)
		})
	}
}

func TestCreateFixedPriceListing_HasNoEndTime(t *testing.T) {
	f := newFixture(t)
	l, err := f.listingSvc.CreateFixedPriceListing(context.Background(), inbound.CreateFixedPriceRequest{
		SellerID: uuid.New(),
		Title:    "Desk lamp",
		Price:    2500,
	})
	assert.NoError(t, err)

	check.False(t, l.IsAuction)
	check.Nil(t, l.AuctionEndTime)
	check.Equal(t, listing.PhaseNotAuction, l.Phase(f.clock.Now()))
}

func TestRelist(t *testing.T) {
	ctx := context.Background()

	t.Run("reopens with the original duration and keeps the floor", func(t *testing.T) {
		f := newFixture(t)
		l := f.auction(t, 100, nil, 2)

		_, err := f.bid(ctx, l.ID, uuid.New(), 250)
		assert.NoError(t, err)

		relistAt := f.clock.Advance(5 * listing.Day)
		relisted, err := f.listingSvc.Relist(ctx, inbound.RelistRequest{ListingID: l.ID})
		assert.NoError(t, err)
		check.True(t, relisted.AuctionEndTime.After(relistAt))
		check.Equal(t, relistAt.Add(2*listing.Day), *relisted.AuctionEndTime)
		check.Equal(t, listing.PhaseOpen, relisted.Phase(f.clock.Now()))

		_, err = f.bid(ctx, l.ID, uuid.New(), 250)
		check.True(t, errors.Is(err, shared.ErrBidTooLow))

		b, err := f.bid(ctx, l.ID, uuid.New(), 251)
		assert.NoError(t, err)
		check.Equal(t, int64(251), b.Amount)
	})

	t.Run("explicit duration", func(t *testing.T) {
		f := newFixture(t)
		l := f.auction(t, 100, nil, 1)
		relistAt := f.clock.Advance(2 * listing.Day)

		relisted, err := f.listingSvc.Relist(ctx, inbound.RelistRequest{ListingID: l.ID, Duration: 6 * time.Hour})
		assert.NoError(t, err)
		check.Equal(t, relistAt.Add(6*time.Hour), *relisted.AuctionEndTime)
	})

	t.Run("rejected while open", func(t *testing.T) {
		f := newFixture(t)
		l := f.auction(t, 100, nil, 1)

		_, err := f.listingSvc.Relist(ctx, inbound.RelistRequest{ListingID: l.ID})
		check.True(t, errors.Is(err, shared.ErrNotEnded))

		stored, err := f.listingSvc.GetListing(ctx, l.ID)
		assert.NoError(t, err)
		check.Equal(t, *l.AuctionEndTime, *stored.AuctionEndTime)
	})

	t.Run("unknown listing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.listingSvc.Relist(ctx, inbound.RelistRequest{ListingID: uuid.New()})
		check.True(t, errors.Is(err, shared.ErrListingNotFound))
	})
}

func TestUpdateEndTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.auction(t, 100, nil, 1)

	extended := l.AuctionEndTime.Add(12 * time.Hour)
	updated, err := f.listingSvc.UpdateEndTime(ctx, l.ID, extended)
	assert.NoError(t, err)
	check.Equal(t, extended, *updated.AuctionEndTime)

	f.clock.Set(extended.Add(time.Minute))
	_, err = f.listingSvc.UpdateEndTime(ctx, l.ID, extended.Add(listing.Day))
	check.True(t, errors.Is(err, shared.ErrNotOpen))

	fixed, err := f.listingSvc.CreateFixedPriceListing(ctx, inbound.CreateFixedPriceRequest{SellerID: uuid.New(), Price: 10})
	assert.NoError(t, err)
	_, err = f.listingSvc.UpdateEndTime(ctx, fixed.ID, extended)
	check.True(t, errors.Is(err, shared.ErrNotOpen))
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.auction(t, 100, nil, 1)

	title := "Leica M3"
	updated, err := f.listingSvc.UpdateDetails(ctx, inbound.UpdateDetailsRequest{
		ListingID:    l.ID,
		Title:        &title,
		ReservePrice: int64Ptr(400),
	})
	assert.NoError(t, err)
	check.Equal(t, title, updated.Title)
	check.Equal(t, int64(400), *updated.ReservePrice)
	check.Equal(t, int64(100), updated.BasePrice)

	_, err = f.listingSvc.UpdateDetails(ctx, inbound.UpdateDetailsRequest{ListingID: l.ID, BasePrice: int64Ptr(-3)})
	check.True(t, errors.Is(err, shared.ErrInvalidPrice))

	stored, err := f.listingSvc.GetListing(ctx, l.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(100), stored.BasePrice)
}

func TestDeleteListing_CascadesBids(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.auction(t, 100, nil, 1)

	b, err := f.bid(ctx, l.ID, uuid.New(), 150)
	assert.NoError(t, err)

	assert.NoError(t, f.listingSvc.DeleteListing(ctx, l.ID))

	_, err = f.listingSvc.GetListing(ctx, l.ID)
	check.True(t, errors.Is(err, shared.ErrListingNotFound))
	_, err = f.ledger.GetByID(ctx, b.ID)
	check.True(t, errors.Is(err, shared.ErrBidNotFound))

	count, err := f.ledger.CountFor(ctx, l.ID)
	assert.NoError(t, err)
	check.Equal(t, 0, count)

	types := f.broadcaster.types()
	check.Equal(t, outbound.EventTypeListingDeleted, types[len(types)-1])

	err = f.listingSvc.DeleteListing(ctx, l.ID)
	check.True(t, errors.Is(err, shared.ErrListingNotFound))
}

type failingDeleteRepo struct {
	*memory.ListingRepository
}

func (r failingDeleteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("connection reset by peer")
}

func TestDeleteListing_KeepsBidsWhenListingDeleteFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.auction(t, 100, nil, 1)

	_, err := f.bid(ctx, l.ID, uuid.New(), 150)
	assert.NoError(t, err)

	svc := NewListingService(ListingServiceParams{
		ListingRepo: failingDeleteRepo{f.listings},
		BidLedger:   f.ledger,
		Clock:       f.clock,
		Locks:       NewListingLocks(),
		Logger:      zerolog.Nop(),
	})

	err = svc.DeleteListing(ctx, l.ID)
	check.True(t, errors.Is(err, shared.ErrStorageUnavailable))

	_, err = f.listingSvc.GetListing(ctx, l.ID)
	check.NoError(t, err)
	count, err := f.ledger.CountFor(ctx, l.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, count)
}
