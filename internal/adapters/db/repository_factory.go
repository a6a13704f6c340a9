package db

import (
	"hammerdrop-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates the Postgres-backed stores
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetListingRepository returns the listing repository
func (f *RepositoryFactory) GetListingRepository() outbound.ListingRepository {
	return NewListingRepository(f.conn)
}

// GetBidLedger returns the bid ledger
func (f *RepositoryFactory) GetBidLedger() outbound.BidLedger {
	return NewBidLedger(f.conn)
}
