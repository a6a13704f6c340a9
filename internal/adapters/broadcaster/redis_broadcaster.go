package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster fans events out through Redis pub/sub so that every
// service instance delivers them to its own WebSocket clients.
type RedisBroadcaster struct {
	client  *redis.Client
	subs    *subscriptions
	pubsubs map[string]*redis.PubSub // clientID -> pubsub connection
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewRedisBroadcaster creates a broadcaster backed by Redis pub/sub
func NewRedisBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:  params.RedisClient,
		subs:    newSubscriptions(),
		pubsubs: make(map[string]*redis.PubSub),
		ctx:     ctx,
		cancel:  cancel,
		logger:  params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// ChannelName is the Redis channel carrying a listing's events
func ChannelName(listingID uuid.UUID) string {
	return fmt.Sprintf("listing:%s", listingID.String())
}

// Subscribe subscribes a client to events for a specific listing
func (r *RedisBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	added, _ := r.subs.add(listingID, clientID, eventChan)
	if !added {
		r.logger.Info().
			Str("client_id", clientID).
			Str("listing_id", listingID.String()).
			Msg("Client already subscribed to listing")
		return nil
	}

	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[clientID] = pubsub
		go r.listenForRedisMessages(pubsub, clientID, eventChan)
	}

	if err := pubsub.Subscribe(ctx, ChannelName(listingID)); err != nil {
		if _, last := r.subs.remove(listingID, clientID); last {
			pubsub.Close()
			delete(r.pubsubs, clientID)
		}
		r.logger.Error().Err(err).Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Failed to subscribe to Redis channel")
		return fmt.Errorf("%w: %v", shared.ErrBroadcastFailed, err)
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("listing_id", listingID.String()).
		Msg("Client subscribed to listing via Redis")
	return nil
}

// Unsubscribe unsubscribes a client from events for a specific listing
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, last := r.subs.remove(listingID, clientID)
	if !removed {
		return nil
	}

	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		return nil
	}

	if last {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	} else if err := pubsub.Unsubscribe(ctx, ChannelName(listingID)); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("listing_id", listingID.String()).Msg("Error unsubscribing from Redis channel")
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("listing_id", listingID.String()).
		Msg("Client unsubscribed from listing")
	return nil
}

// Publish publishes an event to all subscribers of a listing via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, ChannelName(listingID), eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Info().
		Str("event_type", string(event.Type)).
		Str("listing_id", listingID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to listing")
	return nil
}

// IsSubscribed checks if a client is subscribed to a listing
func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool {
	return r.subs.has(listingID, clientID)
}

// listenForRedisMessages forwards a client's Redis messages to its event channel
func (r *RedisBroadcaster) listenForRedisMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Debug().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			if !deliver(localChan, event) {
				r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close closes every pubsub connection and the Redis client
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, pubsub := range r.pubsubs {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}
	r.subs.clear()

	return r.client.Close()
}
