package app

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
)

func TestListingLocks_SerializesSameListing(t *testing.T) {
	locks := NewListingLocks()
	listingID := uuid.New()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(listingID)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	check.Equal(t, 1, maxSeen)
	check.Equal(t, 0, locks.size())
}

func TestListingLocks_DifferentListingsDoNotContend(t *testing.T) {
	locks := NewListingLocks()
	first := uuid.New()

	unlock := locks.Lock(first)
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := locks.Lock(uuid.New())
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another listing blocked")
	}
	check.Equal(t, 1, locks.size())
}
