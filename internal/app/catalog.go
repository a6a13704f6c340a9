package app

import (
	"context"
	"errors"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/inbound"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CatalogService serves the read-side listing views. Reads take no locks and
// may trail a concurrent write.
type CatalogService struct {
	listingRepo outbound.ListingRepository
	bidLedger   outbound.BidLedger
	clock       outbound.Clock
	logger      zerolog.Logger
}

type CatalogServiceParams struct {
	ListingRepo outbound.ListingRepository
	BidLedger   outbound.BidLedger
	Clock       outbound.Clock
	Logger      zerolog.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(params CatalogServiceParams) *CatalogService {
	return &CatalogService{
		listingRepo: params.ListingRepo,
		bidLedger:   params.BidLedger,
		clock:       params.Clock,
		logger:      params.Logger.With().Str("component", "catalog_service").Logger(),
	}
}

// ActiveListings returns fixed-price listings and open auctions
func (service *CatalogService) ActiveListings(ctx context.Context) ([]*listing.Listing, error) {
	now := service.clock.Now()
	return service.filter(ctx, func(l *listing.Listing) bool {
		return l.IsActive(now)
	})
}

// EndedAuctions returns auctions past their end time
func (service *CatalogService) EndedAuctions(ctx context.Context) ([]*listing.Listing, error) {
	now := service.clock.Now()
	return service.filter(ctx, func(l *listing.Listing) bool {
		return l.IsEnded(now)
	})
}

func (service *CatalogService) filter(ctx context.Context, keep func(*listing.Listing) bool) ([]*listing.Listing, error) {
	all, err := service.listingRepo.List(ctx)
	if err != nil {
		service.logger.Error().Err(err).Msg("Failed to list listings")
		return nil, storageError(err)
	}

	listings := make([]*listing.Listing, 0, len(all))
	for _, l := range all {
		if keep(l) {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

// ListingDetails returns a listing with its derived status and bidding summary
func (service *CatalogService) ListingDetails(ctx context.Context, listingID uuid.UUID) (*inbound.ListingDetails, error) {
	l, err := service.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, storageError(err)
	}

	details := &inbound.ListingDetails{Listing: l}
	if !l.IsAuction {
		details.Status = l.Status(service.clock.Now(), nil)
		details.CurrentPrice = l.CurrentPrice(nil)
		return details, nil
	}

	var winning *bid.Bid
	winning, err = service.bidLedger.HighestBid(ctx, listingID)
	if err != nil && !errors.Is(err, shared.ErrNoBidsFound) {
		return nil, storageError(err)
	}
	if errors.Is(err, shared.ErrNoBidsFound) {
		winning = nil
	}

	count, err := service.bidLedger.CountFor(ctx, listingID)
	if err != nil {
		return nil, storageError(err)
	}

	details.Status = l.Status(service.clock.Now(), winning)
	details.CurrentPrice = l.CurrentPrice(winning)
	details.BidCount = count
	details.WinningBid = winning
	return details, nil
}
