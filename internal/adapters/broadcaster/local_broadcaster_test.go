package broadcaster

import (
	"context"
	"testing"
	"time"

	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func TestLocalBroadcaster_DeliversToFollowers(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroadcaster(LocalBroadcasterParams{Logger: zerolog.Nop()})

	listingID := uuid.New()
	other := uuid.New()
	follower := make(chan outbound.Event, 4)
	bystander := make(chan outbound.Event, 4)

	assert.NoError(t, b.Subscribe(ctx, listingID, "alice", follower))
	assert.NoError(t, b.Subscribe(ctx, listingID, "alice", follower))
	assert.NoError(t, b.Subscribe(ctx, other, "bob", bystander))
	check.True(t, b.IsSubscribed(ctx, listingID, "alice"))
	check.False(t, b.IsSubscribed(ctx, listingID, "bob"))

	assert.NoError(t, b.Publish(ctx, listingID, outbound.Event{Type: outbound.EventTypeBidPlaced, ListingID: listingID}))

	select {
	case event := <-follower:
		check.Equal(t, outbound.EventTypeBidPlaced, event.Type)
		check.True(t, event.Timestamp > 0)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	check.Equal(t, 0, len(follower))
	check.Equal(t, 0, len(bystander))

	assert.NoError(t, b.Unsubscribe(ctx, listingID, "alice"))
	check.False(t, b.IsSubscribed(ctx, listingID, "alice"))
	assert.NoError(t, b.Publish(ctx, listingID, outbound.Event{Type: outbound.EventTypeBidPlaced}))
	check.Equal(t, 0, len(follower))
}

func TestLocalBroadcaster_FullChannelDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroadcaster(LocalBroadcasterParams{Logger: zerolog.Nop()})
	listingID := uuid.New()
	events := make(chan outbound.Event, 1)
	assert.NoError(t, b.Subscribe(ctx, listingID, "alice", events))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish(ctx, listingID, outbound.Event{Type: outbound.EventTypeAuctionUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	check.Equal(t, 1, len(events))
}

func TestSubscriptions_LastListingRemovesClient(t *testing.T) {
	subs := newSubscriptions()
	events := make(chan outbound.Event)
	first, second := uuid.New(), uuid.New()

	added, firstForClient := subs.add(first, "alice", events)
	check.True(t, added)
	check.True(t, firstForClient)
	added, firstForClient = subs.add(second, "alice", events)
	check.True(t, added)
	check.False(t, firstForClient)

	removed, last := subs.remove(first, "alice")
	check.True(t, removed)
	check.False(t, last)
	removed, last = subs.remove(second, "alice")
	check.True(t, removed)
	check.True(t, last)

	removed, _ = subs.remove(second, "alice")
	check.False(t, removed)
}
