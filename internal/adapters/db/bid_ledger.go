package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const bidColumns = `id, listing_id, bidder_id, amount, status, placed_at, updated_at`

// uniqueViolation is the Postgres error code raised by bids_one_winner_idx
const uniqueViolation = "23505"

// BidLedger stores bids in Postgres. Writers lock the listing row, so every
// change to one listing's ledger is serialized across processes.
type BidLedger struct {
	conn *Connection
}

// NewBidLedger creates a new Postgres bid ledger
func NewBidLedger(conn *Connection) *BidLedger {
	return &BidLedger{conn: conn}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// HighestBid returns the current winning bid
func (l *BidLedger) HighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	winning, err := winningBid(ctx, l.conn.GetDB(), listingID)
	if err != nil {
		return nil, err
	}
	if winning == nil {
		return nil, shared.ErrNoBidsFound
	}
	return winning, nil
}

/*
Append stores b as the winning bid in one transaction:
 1. lock the listing row
 2. read the current winner and compare it with expectedWinning
 3. mark the previous winner outbid
 4. insert b as winning
*/
func (l *BidLedger) Append(ctx context.Context, b *bid.Bid, expectedWinning *uuid.UUID) error {
	err := l.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		if err := lockListing(ctx, tx, b.ListingID); err != nil {
			return err
		}

		current, err := winningBid(ctx, tx, b.ListingID)
		if err != nil {
			return err
		}
		if !sameBid(current, expectedWinning) {
			return shared.ErrLedgerConflict
		}

		if current != nil {
			_, err := tx.ExecContext(ctx,
				`UPDATE bids SET status = $2, updated_at = $3 WHERE id = $1`,
				current.ID, bid.StatusOutbid, b.PlacedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to mark bid outbid: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, b.ListingID, b.BidderID, b.Amount, bid.StatusWinning, b.PlacedAt, b.PlacedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}
		return nil
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return shared.ErrLedgerConflict
		}
		return err
	}

	b.MarkWinning(b.PlacedAt)
	return nil
}

// BidsFor returns the listing's bids, highest first
func (l *BidLedger) BidsFor(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, placed_at ASC, id ASC
	`
	return queryBids(ctx, l.conn.GetDB(), query, listingID)
}

// CountFor returns the number of bids recorded for the listing
func (l *BidLedger) CountFor(ctx context.Context, listingID uuid.UUID) (int, error) {
	var count int
	err := l.conn.GetDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM bids WHERE listing_id = $1`, listingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

// GetByID retrieves a bid by ID
func (l *BidLedger) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	bids, err := queryBids(ctx, l.conn.GetDB(), `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, shared.ErrBidNotFound
	}
	return bids[0], nil
}

// Void marks a bid void and promotes the best remaining bid if it was winning
func (l *BidLedger) Void(ctx context.Context, id uuid.UUID, at time.Time) (*bid.Bid, error) {
	var winner *bid.Bid
	err := l.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		var listingID uuid.UUID
		var status bid.Status
		err := tx.QueryRowContext(ctx, `SELECT listing_id, status FROM bids WHERE id = $1`, id).Scan(&listingID, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrBidNotFound
			}
			return fmt.Errorf("failed to get bid: %w", err)
		}

		if err := lockListing(ctx, tx, listingID); err != nil {
			return err
		}
		if _, err := winningBid(ctx, tx, listingID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bids SET status = $2, updated_at = $3 WHERE id = $1`,
			id, bid.StatusVoid, at,
		); err != nil {
			return fmt.Errorf("failed to void bid: %w", err)
		}

		if status == bid.StatusWinning {
			_, err := tx.ExecContext(ctx, `
				UPDATE bids SET status = $2, updated_at = $3
				WHERE id = (
					SELECT id FROM bids
					WHERE listing_id = $1 AND status <> $4
					ORDER BY amount DESC, placed_at ASC, id ASC
					LIMIT 1
				)`,
				listingID, bid.StatusWinning, at, bid.StatusVoid,
			)
			if err != nil {
				return fmt.Errorf("failed to promote next bid: %w", err)
			}
		}

		winner, err = winningBid(ctx, tx, listingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// DeleteFor removes every bid of a listing
func (l *BidLedger) DeleteFor(ctx context.Context, listingID uuid.UUID) error {
	if _, err := l.conn.GetDB().ExecContext(ctx, `DELETE FROM bids WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("failed to delete bids: %w", err)
	}
	return nil
}

func lockListing(ctx context.Context, tx *sql.Tx, listingID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `SELECT id FROM listings WHERE id = $1 FOR UPDATE`, listingID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrListingNotFound
		}
		return fmt.Errorf("failed to lock listing: %w", err)
	}
	return nil
}

// winningBid returns the winning bid or nil, and ErrLedgerCorrupted if there is more than one
func winningBid(ctx context.Context, q queryer, listingID uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE listing_id = $1 AND status = $2 LIMIT 2`
	bids, err := queryBids(ctx, q, query, listingID, bid.StatusWinning)
	if err != nil {
		return nil, err
	}

	switch len(bids) {
	case 0:
		return nil, nil
	case 1:
		return bids[0], nil
	default:
		return nil, shared.ErrLedgerCorrupted
	}
}

func queryBids(ctx context.Context, q queryer, query string, args ...any) ([]*bid.Bid, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	bids := make([]*bid.Bid, 0)
	for rows.Next() {
		var b bid.Bid
		err := rows.Scan(
			&b.ID,
			&b.ListingID,
			&b.BidderID,
			&b.Amount,
			&b.Status,
			&b.PlacedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		b.PlacedAt = b.PlacedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

func sameBid(current *bid.Bid, expected *uuid.UUID) bool {
	if current == nil || expected == nil {
		return current == nil && expected == nil
	}
	return current.ID == *expected
}
