package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hammerdrop-auction-service/internal/adapters/broadcaster"
	"hammerdrop-auction-service/internal/adapters/clock"
	"hammerdrop-auction-service/internal/adapters/memory"
	"hammerdrop-auction-service/internal/adapters/rest"
	"hammerdrop-auction-service/internal/app"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	listings := memory.NewListingRepository()
	ledger := memory.NewBidLedger()
	locks := app.NewListingLocks()
	events := broadcaster.NewLocalBroadcaster(broadcaster.LocalBroadcasterParams{Logger: zerolog.Nop()})

	listingSvc := app.NewListingService(app.ListingServiceParams{
		ListingRepo: listings,
		BidLedger:   ledger,
		Broadcaster: events,
		Clock:       clk,
		Locks:       locks,
		Logger:      zerolog.Nop(),
	})
	bidSvc := app.NewBidService(app.BidServiceParams{
		ListingRepo:     listings,
		BidLedger:       ledger,
		Broadcaster:     events,
		Clock:           clk,
		Locks:           locks,
		AllowSelfOutbid: true,
		Logger:          zerolog.Nop(),
	})
	catalogSvc := app.NewCatalogService(app.CatalogServiceParams{
		ListingRepo: listings,
		BidLedger:   ledger,
		Clock:       clk,
		Logger:      zerolog.Nop(),
	})

	handler := NewHandler(WsHandlerParams{
		Upgrader:       websocket.Upgrader{},
		ListingService: listingSvc,
		BidService:     bidSvc,
		CatalogService: catalogSvc,
		Broadcaster:    events,
		Logger:         zerolog.Nop(),
	})
	api := rest.NewHandler(rest.HandlerParams{
		ListingService: listingSvc,
		BidService:     bidSvc,
		CatalogService: catalogSvc,
		Logger:         zerolog.Nop(),
	})

	server := httptest.NewServer(NewRouter(handler, api))
	t.Cleanup(func() {
		server.Close()
		events.Close()
	})
	return server
}

func dial(t *testing.T, server *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user_id=" + userID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads messages until one of the wanted type arrives
func next(t *testing.T, conn *websocket.Conn, want MessageType) *ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg ServerMessage
		assert.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return &msg
		}
	}
}

func TestWebSocket_RequiresUserID(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/ws?user_id=nope")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_Health(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocket_PingPong(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, uuid.New())

	assert.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	next(t, conn, MessageTypePong)
}

func TestWebSocket_BidReachesSubscribers(t *testing.T) {
	server := newTestServer(t)
	sellerID, watcherID, bidderID := uuid.New(), uuid.New(), uuid.New()

	seller := dial(t, server, sellerID)
	assert.NoError(t, seller.WriteJSON(ClientMessage{
		Type: MessageTypeCreateAuction,
		Data: map[string]interface{}{"title": "Camera", "base_price": "10", "duration_days": 1.0},
	}))
	created := next(t, seller, MessageTypeAuctionCreated)
	assert.NotNil(t, created.ListingID)
	listingID := *created.ListingID

	watcher := dial(t, server, watcherID)
	assert.NoError(t, watcher.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, ListingID: &listingID}))
	subscribed := next(t, watcher, MessageTypeAuctionUpdate)
	check.Equal(t, "subscribed", subscribed.Data["status"].(string))

	bidder := dial(t, server, bidderID)
	assert.NoError(t, bidder.WriteJSON(ClientMessage{
		Type:      MessageTypePlaceBid,
		ListingID: &listingID,
		Data:      map[string]interface{}{"amount": "12.50"},
	}))

	for _, conn := range []*websocket.Conn{seller, watcher, bidder} {
		placed := next(t, conn, MessageTypeBidPlaced)
		check.Equal(t, listingID, *placed.ListingID)
		check.Equal(t, bidderID.String(), placed.Data["bidder_id"].(string))
		check.Equal(t, float64(1250), placed.Data["amount"].(float64))
	}

	// equal amounts never beat the current bid
	assert.NoError(t, watcher.WriteJSON(ClientMessage{
		Type:      MessageTypePlaceBid,
		ListingID: &listingID,
		Data:      map[string]interface{}{"amount": 12.5},
	}))
	rejected := next(t, watcher, MessageTypeError)
	check.Equal(t, "bid amount must be higher than the current bid", *rejected.Error)
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, uuid.New())

	assert.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe}))
	msg := next(t, conn, MessageTypeError)
	check.True(t, strings.Contains(*msg.Error, "listing_id is required"))

	unknown := uuid.New()
	assert.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeGetListing, ListingID: &unknown}))
	msg = next(t, conn, MessageTypeError)
	check.Equal(t, "listing not found", *msg.Error)
}

func TestWebSocket_RelistIsSellerOnly(t *testing.T) {
	server := newTestServer(t)

	seller := dial(t, server, uuid.New())
	assert.NoError(t, seller.WriteJSON(ClientMessage{
		Type: MessageTypeCreateAuction,
		Data: map[string]interface{}{"title": "Lamp", "base_price": "5", "duration_days": 1.0},
	}))
	created := next(t, seller, MessageTypeAuctionCreated)
	listingID := *created.ListingID

	stranger := dial(t, server, uuid.New())
	assert.NoError(t, stranger.WriteJSON(ClientMessage{Type: MessageTypeRelist, ListingID: &listingID}))
	refused := next(t, stranger, MessageTypeError)
	check.Equal(t, "only the seller can change this listing", *refused.Error)

	assert.NoError(t, seller.WriteJSON(ClientMessage{
		Type:      MessageTypeRelist,
		ListingID: &listingID,
		Data:      map[string]interface{}{"duration_days": 1e12},
	}))
	tooLong := next(t, seller, MessageTypeError)
	check.Equal(t, "auction duration must be between 1 and 365 days", *tooLong.Error)

	assert.NoError(t, seller.WriteJSON(ClientMessage{Type: MessageTypeRelist, ListingID: &listingID}))
	open := next(t, seller, MessageTypeError)
	check.Equal(t, "auction has not ended", *open.Error)
}
