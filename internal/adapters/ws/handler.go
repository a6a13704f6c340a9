package ws

import (
	"context"
	"net/http"
	"sync"

	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/inbound"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	upgrader       websocket.Upgrader
	listingService inbound.ListingService
	bidService     inbound.BidService
	catalogService inbound.CatalogService
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	ListingService inbound.ListingService
	BidService     inbound.BidService
	CatalogService inbound.CatalogService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		upgrader:       params.Upgrader,
		listingService: params.ListingService,
		bidService:     params.BidService,
		catalogService: params.CatalogService,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	handler.registerClient(client)
	client.Start()

	go handler.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	for _, listingID := range client.subscribedListings() {
		if err := handler.broadcaster.Unsubscribe(context.Background(), listingID, client.id); err != nil {
			handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to unsubscribe disconnected client")
		}
	}

	client.Stop()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Int("total_clients", total).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the client
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	for {
		select {
		case event := <-client.events:
			if err := client.Send(convertEventToMessage(event)); err != nil {
				handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			}

		case <-client.ctx.Done():
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(client, msg)
	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(client, msg)
	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)
	case MessageTypeCreateAuction:
		return handler.handleCreateAuction(client, msg)
	case MessageTypeGetListing:
		return handler.handleGetListing(client, msg)
	case MessageTypeListActive:
		return handler.handleList(client, handler.catalogService.ActiveListings)
	case MessageTypeListEnded:
		return handler.handleList(client, handler.catalogService.EndedAuctions)
	case MessageTypeRelist:
		return handler.handleRelist(client, msg)
	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func convertEventToMessage(event outbound.Event) *ServerMessage {
	listingID := event.ListingID
	msg := &ServerMessage{
		ListingID: &listingID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case outbound.EventTypeBidPlaced:
		msg.Type = MessageTypeBidPlaced
	case outbound.EventTypeAuctionCreated:
		msg.Type = MessageTypeAuctionCreated
	default:
		msg.Type = MessageTypeAuctionUpdate
		if msg.Data == nil {
			msg.Data = make(map[string]interface{})
		}
		msg.Data["event"] = string(event.Type)
	}
	return msg
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

// subscribe follows the listing's events unless the client already does
func (handler *WsHandler) subscribe(client *WsClient, listingID uuid.UUID) error {
	if handler.broadcaster.IsSubscribed(client.ctx, listingID, client.id) {
		return nil
	}
	if err := handler.broadcaster.Subscribe(client.ctx, listingID, client.id, client.events); err != nil {
		return err
	}
	client.trackListing(listingID, true)
	return nil
}

func (handler *WsHandler) handleSubscribe(client *WsClient, msg *ClientMessage) error {
	if _, err := handler.listingService.GetListing(client.ctx, *msg.ListingID); err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ListingID))
	}

	if err := handler.subscribe(client, *msg.ListingID); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Failed to subscribe to listing")
		return err
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.ListingID = msg.ListingID
	response.Data["status"] = "subscribed"

	handler.logger.Info().Str("client_id", client.id).Str("listing_id", msg.ListingID.String()).Msg("Client subscribed to listing")
	return client.Send(response)
}

func (handler *WsHandler) handleUnsubscribe(client *WsClient, msg *ClientMessage) error {
	if err := handler.broadcaster.Unsubscribe(client.ctx, *msg.ListingID, client.id); err != nil {
		return err
	}
	client.trackListing(*msg.ListingID, false)

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.ListingID = msg.ListingID
	response.Data["status"] = "unsubscribed"
	return client.Send(response)
}

// handlePlaceBid places the bid for the connected user. The bidder is
// subscribed first so the bid_placed broadcast also reaches them.
func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, err := msg.Amount("amount")
	if err != nil {
		return err
	}

	if err := handler.subscribe(client, *msg.ListingID); err != nil {
		handler.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to subscribe bidder to listing")
	}

	b, err := handler.bidService.PlaceBid(client.ctx, inbound.PlaceBidRequest{
		ListingID: *msg.ListingID,
		BidderID:  client.userID,
		Amount:    amount,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ListingID))
	}

	handler.logger.Info().
		Str("bid_id", b.ID.String()).
		Str("listing_id", msg.ListingID.String()).
		Str("user_id", client.userID.String()).
		Int64("amount", amount).
		Msg("Bid placed over WebSocket")
	return nil
}

func (handler *WsHandler) handleCreateAuction(client *WsClient, msg *ClientMessage) error {
	basePrice, err := msg.OptionalAmount("base_price")
	if err != nil {
		return err
	}

	days := msg.Data["duration_days"].(float64)
	if days > listing.MaxAuctionDays {
		return client.Send(NewErrorMessage(shared.ErrInvalidDuration.Error(), nil))
	}

	req := inbound.CreateAuctionRequest{
		SellerID:     client.userID,
		Title:        msg.String("title"),
		Description:  msg.String("description"),
		BrandName:    msg.String("brand_name"),
		BasePrice:    basePrice,
		DurationDays: int(days),
	}
	if _, present := msg.Data["reserve_price"]; present {
		reserve, err := msg.Amount("reserve_price")
		if err != nil {
			return err
		}
		req.ReservePrice = &reserve
	}

	auction, err := handler.listingService.CreateAuction(client.ctx, req)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	if err := handler.subscribe(client, auction.ID); err != nil {
		handler.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to subscribe seller to new auction")
	}

	handler.logger.Info().Str("listing_id", auction.ID.String()).Str("user_id", client.userID.String()).Msg("Auction created over WebSocket")
	return client.Send(NewListingMessage(MessageTypeAuctionCreated, auction, nil))
}

func (handler *WsHandler) handleGetListing(client *WsClient, msg *ClientMessage) error {
	details, err := handler.catalogService.ListingDetails(client.ctx, *msg.ListingID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ListingID))
	}
	return client.Send(NewListingMessage(MessageTypeAuctionUpdate, details.Listing, details))
}

func (handler *WsHandler) handleRelist(client *WsClient, msg *ClientMessage) error {
	current, err := handler.listingService.GetListing(client.ctx, *msg.ListingID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ListingID))
	}
	if current.SellerID != client.userID {
		handler.logger.Warn().Str("listing_id", current.ID.String()).Str("user_id", client.userID.String()).Msg("Relist refused for non-seller")
		return client.Send(NewErrorMessage(shared.ErrNotSeller.Error(), msg.ListingID))
	}

	req := inbound.RelistRequest{ListingID: current.ID}
	if days, ok := msg.Data["duration_days"].(float64); ok {
		if req.Duration, err = listing.DurationFromDays(days); err != nil {
			return client.Send(NewErrorMessage(err.Error(), msg.ListingID))
		}
	}

	relisted, err := handler.listingService.Relist(client.ctx, req)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.ListingID))
	}
	return client.Send(NewListingMessage(MessageTypeAuctionUpdate, relisted, nil))
}

func (handler *WsHandler) handleList(client *WsClient, list func(ctx context.Context) ([]*listing.Listing, error)) error {
	listings, err := list(client.ctx)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}
	return client.Send(NewListingsMessage(listings))
}
