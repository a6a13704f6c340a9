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

// DefaultMaxAdmissionRetries bounds how often a bid is re-validated after losing a ledger race
const DefaultMaxAdmissionRetries = 3

// BidService implements the bid use cases
type BidService struct {
	listingRepo     outbound.ListingRepository
	bidLedger       outbound.BidLedger
	broadcaster     outbound.Broadcaster
	archive         outbound.BidArchive
	clock           outbound.Clock
	locks           *ListingLocks
	allowSelfOutbid bool
	maxRetries      int
	logger          zerolog.Logger
}

type BidServiceParams struct {
	ListingRepo         outbound.ListingRepository
	BidLedger           outbound.BidLedger
	Broadcaster         outbound.Broadcaster
	Archive             outbound.BidArchive
	Clock               outbound.Clock
	Locks               *ListingLocks
	AllowSelfOutbid     bool
	MaxAdmissionRetries int
	Logger              zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	locks := params.Locks
	if locks == nil {
		locks = NewListingLocks()
	}
	maxRetries := params.MaxAdmissionRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxAdmissionRetries
	}

	return &BidService{
		listingRepo:     params.ListingRepo,
		bidLedger:       params.BidLedger,
		broadcaster:     params.Broadcaster,
		archive:         params.Archive,
		clock:           params.Clock,
		locks:           locks,
		allowSelfOutbid: params.AllowSelfOutbid,
		maxRetries:      maxRetries,
		logger:          params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid admits a bid if it beats the current floor of an open auction
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	service.logger.Info().
		Str("listing_id", req.ListingID.String()).
		Str("bidder_id", req.BidderID.String()).
		Int64("amount", req.Amount).
		Msg("Attempting to place bid")

	newBid, previous, err := service.admit(ctx, req)
	if err != nil {
		if shared.IsRejection(err) {
			service.logger.Warn().Err(err).Str("listing_id", req.ListingID.String()).Msg("Bid rejected")
		} else {
			service.logger.Error().Err(err).Str("listing_id", req.ListingID.String()).Msg("Failed to place bid")
		}
		return nil, err
	}

	service.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("listing_id", newBid.ListingID.String()).
		Int64("amount", newBid.Amount).
		Msg("Bid placed successfully")

	service.announce(ctx, newBid, previous)
	return newBid, nil
}

// admit runs the validation and ledger append under the listing lock,
// repeating both when another writer changed the winner in between.
func (service *BidService) admit(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, *bid.Bid, error) {
	unlock := service.locks.Lock(req.ListingID)
	defer unlock()

	var err error
	for attempt := 0; attempt <= service.maxRetries; attempt++ {
		var newBid, previous *bid.Bid
		newBid, previous, err = service.tryAdmit(ctx, req)
		if !errors.Is(err, shared.ErrLedgerConflict) {
			return newBid, previous, err
		}

		service.logger.Debug().
			Str("listing_id", req.ListingID.String()).
			Int("attempt", attempt+1).
			Msg("Ledger changed during admission, retrying")
	}
	return nil, nil, err
}

func (service *BidService) tryAdmit(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, *bid.Bid, error) {
	l, err := service.listingRepo.GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, nil, storageError(err)
	}

	now := service.clock.Now()
	switch l.Phase(now) {
	case listing.PhaseNotAuction:
		return nil, nil, shared.ErrNotAnAuction
	case listing.PhaseEnded:
		return nil, nil, shared.ErrAuctionEnded
	}

	highest, err := service.bidLedger.HighestBid(ctx, req.ListingID)
	if err != nil && !errors.Is(err, shared.ErrNoBidsFound) {
		return nil, nil, storageError(err)
	}
	if errors.Is(err, shared.ErrNoBidsFound) {
		highest = nil
	}

	if req.Amount <= l.Floor(highest) {
		return nil, nil, shared.ErrBidTooLow
	}

	var expected *uuid.UUID
	if highest != nil {
		if highest.BidderID == req.BidderID && !service.allowSelfOutbid {
			return nil, nil, shared.ErrAlreadyWinning
		}
		id := highest.ID
		expected = &id
	}

	newBid := bid.New(req.ListingID, req.BidderID, req.Amount, now)
	if err := service.bidLedger.Append(ctx, newBid, expected); err != nil {
		return nil, nil, storageError(err)
	}
	return newBid, highest, nil
}

// announce publishes and archives an accepted bid. Failures are logged only.
func (service *BidService) announce(ctx context.Context, newBid, previous *bid.Bid) {
	var previousID *uuid.UUID
	var previousAmount int64
	if previous != nil {
		id := previous.ID
		previousID = &id
		previousAmount = previous.Amount
	}

	if service.broadcaster != nil {
		data := map[string]interface{}{
			"bid_id":    newBid.ID.String(),
			"bidder_id": newBid.BidderID.String(),
			"amount":    newBid.Amount,
			"timestamp": newBid.PlacedAt.Unix(),
		}
		if previousID != nil {
			data["previous_bid_id"] = previousID.String()
			data["previous_bid"] = previousAmount
		}

		event := outbound.Event{
			Type:      outbound.EventTypeBidPlaced,
			ListingID: newBid.ListingID,
			Data:      data,
			Timestamp: newBid.PlacedAt.Unix(),
		}
		if err := service.broadcaster.Publish(ctx, newBid.ListingID, event); err != nil {
			service.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to broadcast bid event")
		}
	}

	if service.archive != nil {
		record := outbound.BidRecord{
			EventID:       uuid.New(),
			BidID:         newBid.ID,
			ListingID:     newBid.ListingID,
			BidderID:      newBid.BidderID,
			Amount:        newBid.Amount,
			PreviousBidID: previousID,
			PreviousBid:   previousAmount,
			PlacedAt:      newBid.PlacedAt,
		}
		if err := service.archive.Archive(ctx, record); err != nil {
			service.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to archive bid")
		}
	}
}

// GetBids retrieves the bids of a listing, highest first
func (service *BidService) GetBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := service.listingRepo.GetByID(ctx, listingID); err != nil {
		return nil, storageError(err)
	}

	bids, err := service.bidLedger.BidsFor(ctx, listingID)
	if err != nil {
		return nil, storageError(err)
	}
	return bids, nil
}

// GetHighestBid retrieves the winning bid of a listing
func (service *BidService) GetHighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	highest, err := service.bidLedger.HighestBid(ctx, listingID)
	if err != nil {
		return nil, storageError(err)
	}
	return highest, nil
}

// GetBid retrieves a bid by ID
func (service *BidService) GetBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	b, err := service.bidLedger.GetByID(ctx, bidID)
	if err != nil {
		return nil, storageError(err)
	}
	return b, nil
}

// VoidBid takes a bid out of contention and returns the listing's new winner, if any
func (service *BidService) VoidBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	target, err := service.bidLedger.GetByID(ctx, bidID)
	if err != nil {
		return nil, storageError(err)
	}

	unlock := service.locks.Lock(target.ListingID)
	winning, err := service.bidLedger.Void(ctx, bidID, service.clock.Now())
	unlock()
	if err != nil {
		service.logger.Error().Err(err).Str("bid_id", bidID.String()).Msg("Failed to void bid")
		return nil, storageError(err)
	}

	service.logger.Info().
		Str("bid_id", bidID.String()).
		Str("listing_id", target.ListingID.String()).
		Msg("Bid voided")

	if service.broadcaster != nil {
		data := map[string]interface{}{"bid_id": bidID.String()}
		if winning != nil {
			data["winning_bid_id"] = winning.ID.String()
			data["amount"] = winning.Amount
		}
		event := outbound.Event{
			Type:      outbound.EventTypeBidVoided,
			ListingID: target.ListingID,
			Data:      data,
			Timestamp: service.clock.Now().Unix(),
		}
		if err := service.broadcaster.Publish(ctx, target.ListingID, event); err != nil {
			service.logger.Error().Err(err).Str("bid_id", bidID.String()).Msg("Failed to broadcast void event")
		}
	}
	return winning, nil
}
