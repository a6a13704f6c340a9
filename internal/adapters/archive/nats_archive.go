package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// subjectPrefix is followed by the listing ID, e.g. bids.archive.<listing>
const subjectPrefix = "bids.archive"

// NATSArchive publishes accepted bids to a JetStream stream for durable
// downstream storage. Publishing waits for the server acknowledgement.
type NATSArchive struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	timeout time.Duration
	logger  zerolog.Logger
}

type NATSArchiveParams struct {
	Conn           *nats.Conn
	Stream         string
	PublishTimeout time.Duration
	Logger         zerolog.Logger
}

// Connect dials the NATS server at url
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("hammerdrop-auction-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSArchive makes sure the stream exists and returns an archive publishing to it
func NewNATSArchive(ctx context.Context, params NATSArchiveParams) (*NATSArchive, error) {
	js, err := jetstream.New(params.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        params.Stream,
		Description: "Accepted bids for archival",
		Subjects:    []string{subjectPrefix + ".*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logger := params.Logger.With().Str("component", "nats_archive").Logger()
	logger.Info().Str("stream", params.Stream).Msg("Bid archive stream ready")

	return &NATSArchive{
		conn:    params.Conn,
		js:      js,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Subject returns the subject a listing's bids are archived under
func Subject(record outbound.BidRecord) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, record.ListingID.String())
}

// Archive publishes the record. The event ID doubles as the JetStream
// message ID so a retried publish is stored once.
func (a *NATSArchive) Archive(ctx context.Context, record outbound.BidRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal bid record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ack, err := a.js.Publish(ctx, Subject(record), data, jetstream.WithMsgID(record.EventID.String()))
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	a.logger.Debug().
		Str("bid_id", record.BidID.String()).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("Bid archived")
	return nil
}

// Close drains the NATS connection
func (a *NATSArchive) Close() error {
	return a.conn.Drain()
}
