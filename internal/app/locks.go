package app

import (
	"sync"

	"github.com/google/uuid"
)

// ListingLocks hands out one mutex per listing. Every service that mutates a
// listing or its ledger must share the same ListingLocks. Entries are reference counted
// and dropped when the last holder unlocks, so the map only holds listings
// that are being written right now.
type ListingLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*listingLock
}

type listingLock struct {
	mu      sync.Mutex
	holders int
}

// NewListingLocks creates an empty lock registry
func NewListingLocks() *ListingLocks {
	return &ListingLocks{locks: make(map[uuid.UUID]*listingLock)}
}

// Lock blocks until the caller owns listingID and returns the release func
func (l *ListingLocks) Lock(listingID uuid.UUID) func() {
	l.mu.Lock()
	entry, exists := l.locks[listingID]
	if !exists {
		entry = &listingLock{}
		l.locks[listingID] = entry
	}
	entry.holders++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.holders--
		if entry.holders == 0 {
			delete(l.locks, listingID)
		}
		l.mu.Unlock()
	}
}

// size returns the number of listings currently held or awaited
func (l *ListingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
