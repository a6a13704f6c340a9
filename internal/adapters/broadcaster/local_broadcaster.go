package broadcaster

import (
	"context"
	"time"

	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalBroadcaster fans events out to subscribers of this process only.
// It serves single-instance deployments that run without Redis.
type LocalBroadcaster struct {
	subs   *subscriptions
	logger zerolog.Logger
}

type LocalBroadcasterParams struct {
	Logger zerolog.Logger
}

// NewLocalBroadcaster creates an in-process broadcaster
func NewLocalBroadcaster(params LocalBroadcasterParams) *LocalBroadcaster {
	return &LocalBroadcaster{
		subs:   newSubscriptions(),
		logger: params.Logger.With().Str("component", "local_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to events for a specific listing
func (b *LocalBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	if added, _ := b.subs.add(listingID, clientID, eventChan); !added {
		b.logger.Debug().Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Client already subscribed to listing")
	}
	return nil
}

// Unsubscribe unsubscribes a client from events for a specific listing
func (b *LocalBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error {
	b.subs.remove(listingID, clientID)
	return nil
}

// Publish delivers the event to every local follower of the listing
func (b *LocalBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	delivered := 0
	for _, events := range b.subs.followers(listingID) {
		if deliver(events, event) {
			delivered++
		} else {
			b.logger.Warn().Str("listing_id", listingID.String()).Msg("Subscriber channel full, dropping event")
		}
	}

	b.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("listing_id", listingID.String()).
		Int("subscriber_count", delivered).
		Msg("Published event to listing")
	return nil
}

// IsSubscribed checks if a client is subscribed to a listing
func (b *LocalBroadcaster) IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool {
	return b.subs.has(listingID, clientID)
}

// Close drops every subscription
func (b *LocalBroadcaster) Close() error {
	b.subs.clear()
	return nil
}
