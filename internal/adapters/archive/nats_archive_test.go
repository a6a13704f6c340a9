package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func TestSubject(t *testing.T) {
	listingID := uuid.MustParse("6f1c1f3e-8d3a-4a55-9a43-2f0f8b0c9d11")
	check.Equal(t, "bids.archive.6f1c1f3e-8d3a-4a55-9a43-2f0f8b0c9d11", Subject(outbound.BidRecord{ListingID: listingID}))
}

func TestNATSArchive_PublishIsIdempotent(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	ctx := context.Background()
	conn, err := Connect(url)
	assert.NoError(t, err)

	archive, err := NewNATSArchive(ctx, NATSArchiveParams{
		Conn:   conn,
		Stream: "BIDS_TEST",
		Logger: zerolog.Nop(),
	})
	assert.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	record := outbound.BidRecord{
		EventID:   uuid.New(),
		BidID:     uuid.New(),
		ListingID: uuid.New(),
		BidderID:  uuid.New(),
		Amount:    15000,
		PlacedAt:  time.Now().UTC(),
	}
	check.NoError(t, archive.Archive(ctx, record))
	check.NoError(t, archive.Archive(ctx, record))
}
