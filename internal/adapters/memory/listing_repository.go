package memory

import (
	"context"
	"sort"
	"sync"

	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ListingRepository keeps listings in process memory
type ListingRepository struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]*listing.Listing
}

// NewListingRepository creates an empty listing repository
func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		listings: make(map[uuid.UUID]*listing.Listing),
	}
}

// Create stores a new listing
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listings[l.ID] = cloneListing(l)
	return nil
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, exists := r.listings[id]
	if !exists {
		return nil, shared.ErrListingNotFound
	}
	return cloneListing(l), nil
}

// List retrieves every listing, newest first
func (r *ListingRepository) List(ctx context.Context) ([]*listing.Listing, error) {
	r.mu.RLock()
	listings := make([]*listing.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		listings = append(listings, cloneListing(l))
	}
	r.mu.RUnlock()

	sort.Slice(listings, func(i, j int) bool {
		if listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].ID.String() < listings[j].ID.String()
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings, nil
}

// Update replaces the stored listing fields
func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listings[l.ID]; !exists {
		return shared.ErrListingNotFound
	}
	r.listings[l.ID] = cloneListing(l)
	return nil
}

// Delete deletes a listing
func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listings[id]; !exists {
		return shared.ErrListingNotFound
	}
	delete(r.listings, id)
	return nil
}

func cloneListing(l *listing.Listing) *listing.Listing {
	c := *l
	if l.ReservePrice != nil {
		reserve := *l.ReservePrice
		c.ReservePrice = &reserve
	}
	if l.AuctionEndTime != nil {
		endTime := *l.AuctionEndTime
		c.AuctionEndTime = &endTime
	}
	return &c
}
