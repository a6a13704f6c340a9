package broadcaster

import (
	"sync"

	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// subscriptions tracks which listings each client follows and where its
// events go. A client has one event channel for all of its listings.
// Channels belong to the client and are never closed here.
type subscriptions struct {
	mu      sync.RWMutex
	clients map[string]*subscriber
}

type subscriber struct {
	events   chan outbound.Event
	listings map[uuid.UUID]struct{}
}

func newSubscriptions() *subscriptions {
	return &subscriptions{clients: make(map[string]*subscriber)}
}

// add records the subscription and reports whether it is new and whether the client itself is new
func (s *subscriptions) add(listingID uuid.UUID, clientID string, events chan outbound.Event) (added, firstForClient bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.clients[clientID]
	if !exists {
		sub = &subscriber{events: events, listings: make(map[uuid.UUID]struct{})}
		s.clients[clientID] = sub
	}
	if _, subscribed := sub.listings[listingID]; subscribed {
		return false, false
	}
	sub.listings[listingID] = struct{}{}
	return true, !exists
}

// remove drops the subscription and reports whether the client has no listings left
func (s *subscriptions) remove(listingID uuid.UUID, clientID string) (removed, lastForClient bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.clients[clientID]
	if !exists {
		return false, false
	}
	if _, subscribed := sub.listings[listingID]; !subscribed {
		return false, false
	}
	delete(sub.listings, listingID)
	if len(sub.listings) == 0 {
		delete(s.clients, clientID)
		return true, true
	}
	return true, false
}

func (s *subscriptions) has(listingID uuid.UUID, clientID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.clients[clientID]
	if !exists {
		return false
	}
	_, subscribed := sub.listings[listingID]
	return subscribed
}

// followers returns the event channels of every client following listingID
func (s *subscriptions) followers(listingID uuid.UUID) []chan outbound.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var channels []chan outbound.Event
	for _, sub := range s.clients {
		if _, subscribed := sub.listings[listingID]; subscribed {
			channels = append(channels, sub.events)
		}
	}
	return channels
}

func (s *subscriptions) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[string]*subscriber)
}

// deliver hands the event over without blocking the publisher
func deliver(events chan outbound.Event, event outbound.Event) bool {
	select {
	case events <- event:
		return true
	default:
		return false
	}
}
