package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const listingColumns = `id, seller_id, title, description, brand_name, price, base_price,
	reserve_price, is_auction, auction_end_time, auction_duration, created_at, updated_at`

// ListingRepository implements the listing repository interface
type ListingRepository struct {
	conn *Connection
}

// NewListingRepository creates a new listing repository
func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

// Create stores a new listing
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		l.ID,
		l.SellerID,
		l.Title,
		l.Description,
		l.BrandName,
		l.Price,
		l.BasePrice,
		nullInt64(l.ReservePrice),
		l.IsAuction,
		nullTime(l.AuctionEndTime),
		int64(l.AuctionDuration),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return l, nil
}

// List retrieves every listing, newest first
func (r *ListingRepository) List(ctx context.Context) ([]*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC, id`

	rows, err := r.conn.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]*listing.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

// Update replaces the stored listing fields
func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	query := `
		UPDATE listings
		SET title = $2, description = $3, brand_name = $4, price = $5, base_price = $6,
			reserve_price = $7, auction_end_time = $8, auction_duration = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		l.ID,
		l.Title,
		l.Description,
		l.BrandName,
		l.Price,
		l.BasePrice,
		nullInt64(l.ReservePrice),
		nullTime(l.AuctionEndTime),
		int64(l.AuctionDuration),
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}

	return expectOneRow(result, shared.ErrListingNotFound)
}

// Delete deletes a listing; its bids go with it through ON DELETE CASCADE
func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.conn.GetDB().ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	return expectOneRow(result, shared.ErrListingNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*listing.Listing, error) {
	var (
		l        listing.Listing
		reserve  sql.NullInt64
		endTime  sql.NullTime
		duration int64
	)
	err := row.Scan(
		&l.ID,
		&l.SellerID,
		&l.Title,
		&l.Description,
		&l.BrandName,
		&l.Price,
		&l.BasePrice,
		&reserve,
		&l.IsAuction,
		&endTime,
		&duration,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reserve.Valid {
		l.ReservePrice = &reserve.Int64
	}
	if endTime.Valid {
		end := endTime.Time.UTC()
		l.AuctionEndTime = &end
	}
	l.AuctionDuration = time.Duration(duration)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
