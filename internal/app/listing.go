package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/inbound"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ListingService implements the auction lifecycle and listing management use cases
type ListingService struct {
	listingRepo outbound.ListingRepository
	bidLedger   outbound.BidLedger
	broadcaster outbound.Broadcaster
	clock       outbound.Clock
	locks       *ListingLocks
	logger      zerolog.Logger
}

type ListingServiceParams struct {
	ListingRepo outbound.ListingRepository
	BidLedger   outbound.BidLedger
	Broadcaster outbound.Broadcaster
	Clock       outbound.Clock
	Locks       *ListingLocks
	Logger      zerolog.Logger
}

// NewListingService creates a new listing service
func NewListingService(params ListingServiceParams) *ListingService {
	locks := params.Locks
	if locks == nil {
		locks = NewListingLocks()
	}

	return &ListingService{
		listingRepo: params.ListingRepo,
		bidLedger:   params.BidLedger,
		broadcaster: params.Broadcaster,
		clock:       params.Clock,
		locks:       locks,
		logger:      params.Logger.With().Str("component", "listing_service").Logger(),
	}
}

// CreateAuction creates an auction listing open for the requested number of days
func (service *ListingService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*listing.Listing, error) {
	service.logger.Info().
		Str("seller_id", req.SellerID.String()).
		Int64("base_price", req.BasePrice).
		Int("duration_days", req.DurationDays).
		Msg("Attempting to create auction")

	if req.SellerID == uuid.Nil {
		return nil, shared.ErrSellerIDRequired
	}

	auction, err := listing.NewAuction(req.SellerID, req.BasePrice, req.ReservePrice, req.DurationDays, service.clock.Now())
	if err != nil {
		service.logger.Warn().Err(err).Int("duration_days", req.DurationDays).Msg("Invalid auction request")
		return nil, err
	}
	auction.Title = req.Title
	auction.Description = req.Description
	auction.BrandName = req.BrandName

	if err := service.listingRepo.Create(ctx, auction); err != nil {
		service.logger.Error().Err(err).Str("listing_id", auction.ID.String()).Msg("Failed to save auction")
		return nil, storageError(err)
	}

	service.logger.Info().
		Str("listing_id", auction.ID.String()).
		Time("end_time", *auction.AuctionEndTime).
		Msg("Auction created successfully")

	service.publish(ctx, auction, outbound.EventTypeAuctionCreated)
	return auction, nil
}

// CreateFixedPriceListing creates a listing sold at a fixed price
func (service *ListingService) CreateFixedPriceListing(ctx context.Context, req inbound.CreateFixedPriceRequest) (*listing.Listing, error) {
	if req.SellerID == uuid.Nil {
		return nil, shared.ErrSellerIDRequired
	}

	l, err := listing.NewFixedPrice(req.SellerID, req.Price, service.clock.Now())
	if err != nil {
		return nil, err
	}
	l.Title = req.Title
	l.Description = req.Description
	l.BrandName = req.BrandName

	if err := service.listingRepo.Create(ctx, l); err != nil {
		service.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to save listing")
		return nil, storageError(err)
	}

	service.logger.Info().Str("listing_id", l.ID.String()).Int64("price", l.Price).Msg("Fixed-price listing created")
	return l, nil
}

// GetListing retrieves a listing by ID
func (service *ListingService) GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	l, err := service.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, storageError(err)
	}
	return l, nil
}

// Relist reopens an ended auction. The bids stay in the ledger, so the next
// accepted bid must still beat the previous high.
func (service *ListingService) Relist(ctx context.Context, req inbound.RelistRequest) (*listing.Listing, error) {
	l, err := service.mutate(ctx, req.ListingID, func(l *listing.Listing, now time.Time) error {
		return l.Relist(req.Duration, now)
	})
	if err != nil {
		service.logger.Warn().Err(err).Str("listing_id", req.ListingID.String()).Msg("Relist rejected")
		return nil, err
	}

	service.logger.Info().
		Str("listing_id", l.ID.String()).
		Time("end_time", *l.AuctionEndTime).
		Msg("Auction relisted")

	service.publish(ctx, l, outbound.EventTypeAuctionRelisted)
	return l, nil
}

// UpdateEndTime moves the end time of an open auction
func (service *ListingService) UpdateEndTime(ctx context.Context, listingID uuid.UUID, endTime time.Time) (*listing.Listing, error) {
	l, err := service.mutate(ctx, listingID, func(l *listing.Listing, now time.Time) error {
		return l.UpdateEndTime(endTime, now)
	})
	if err != nil {
		service.logger.Warn().Err(err).Str("listing_id", listingID.String()).Msg("End time update rejected")
		return nil, err
	}

	service.logger.Info().Str("listing_id", listingID.String()).Time("end_time", endTime).Msg("Auction end time updated")
	service.publish(ctx, l, outbound.EventTypeAuctionUpdated)
	return l, nil
}

// UpdateDetails edits the descriptive and price fields of a listing
func (service *ListingService) UpdateDetails(ctx context.Context, req inbound.UpdateDetailsRequest) (*listing.Listing, error) {
	l, err := service.mutate(ctx, req.ListingID, func(l *listing.Listing, now time.Time) error {
		if req.Title != nil {
			l.Title = *req.Title
		}
		if req.Description != nil {
			l.Description = *req.Description
		}
		if req.BrandName != nil {
			l.BrandName = *req.BrandName
		}
		if req.Price != nil {
			l.Price = *req.Price
		}
		if req.BasePrice != nil {
			l.BasePrice = *req.BasePrice
		}
		if req.ReservePrice != nil {
			reserve := *req.ReservePrice
			l.ReservePrice = &reserve
		}
		l.UpdatedAt = now
		return l.Validate()
	})
	if err != nil {
		return nil, err
	}

	service.logger.Info().Str("listing_id", l.ID.String()).Msg("Listing details updated")
	if l.IsAuction {
		service.publish(ctx, l, outbound.EventTypeAuctionUpdated)
	}
	return l, nil
}

// DeleteListing deletes a listing together with its bids
func (service *ListingService) DeleteListing(ctx context.Context, listingID uuid.UUID) error {
	unlock := service.locks.Lock(listingID)
	defer unlock()

	if _, err := service.listingRepo.GetByID(ctx, listingID); err != nil {
		return storageError(err)
	}

	if err := service.listingRepo.Delete(ctx, listingID); err != nil {
		service.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to delete listing")
		return storageError(err)
	}

	// Bids of a deleted listing are unreachable; stores without a cascade drop them here.
	if err := service.bidLedger.DeleteFor(ctx, listingID); err != nil {
		service.logger.Warn().Err(err).Str("listing_id", listingID.String()).Msg("Failed to delete bids of deleted listing")
	}

	service.logger.Info().Str("listing_id", listingID.String()).Msg("Listing deleted")

	if service.broadcaster != nil {
		event := outbound.Event{
			Type:      outbound.EventTypeListingDeleted,
			ListingID: listingID,
			Data:      map[string]interface{}{"listing_id": listingID.String()},
			Timestamp: service.clock.Now().Unix(),
		}
		if err := service.broadcaster.Publish(ctx, listingID, event); err != nil {
			service.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to broadcast listing deletion")
		}
	}
	return nil
}

// mutate loads the listing, applies fn and stores the result while holding the listing's lock
func (service *ListingService) mutate(ctx context.Context, listingID uuid.UUID, fn func(l *listing.Listing, now time.Time) error) (*listing.Listing, error) {
	unlock := service.locks.Lock(listingID)
	defer unlock()

	l, err := service.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, storageError(err)
	}

	if err := fn(l, service.clock.Now()); err != nil {
		return nil, err
	}

	if err := service.listingRepo.Update(ctx, l); err != nil {
		service.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to update listing")
		return nil, storageError(err)
	}
	return l, nil
}

func (service *ListingService) publish(ctx context.Context, l *listing.Listing, eventType outbound.EventType) {
	if service.broadcaster == nil {
		return
	}

	data := map[string]interface{}{
		"listing_id": l.ID.String(),
		"base_price": l.BasePrice,
		"status":     l.Status(service.clock.Now(), nil),
	}
	if l.AuctionEndTime != nil {
		data["end_time"] = l.AuctionEndTime.Format(time.RFC3339)
	}

	event := outbound.Event{
		Type:      eventType,
		ListingID: l.ID,
		Data:      data,
		Timestamp: service.clock.Now().Unix(),
	}
	if err := service.broadcaster.Publish(ctx, l.ID, event); err != nil {
		service.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to broadcast listing event")
	}
}

// storageError passes domain errors through and marks everything else as a
// storage failure so callers can tell it apart from a rejection.
func storageError(err error) error {
	if err == nil || shared.IsRejection(err) ||
		errors.Is(err, shared.ErrNoBidsFound) ||
		errors.Is(err, shared.ErrLedgerConflict) ||
		errors.Is(err, shared.ErrLedgerCorrupted) ||
		errors.Is(err, shared.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
}
