package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/money"
	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypePlaceBid      MessageType = "place_bid"
	MessageTypeCreateAuction MessageType = "create_auction"
	MessageTypeGetListing    MessageType = "get_listing"
	MessageTypeListActive    MessageType = "list_active"
	MessageTypeListEnded     MessageType = "list_ended"
	MessageTypeRelist        MessageType = "relist"
	MessageTypePing          MessageType = "ping"

	// Server to Client message types
	MessageTypeBidPlaced      MessageType = "bid_placed"
	MessageTypeAuctionUpdate  MessageType = "auction_update"
	MessageTypeAuctionCreated MessageType = "auction_created"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	ListingID *uuid.UUID             `json:"listing_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	ListingID *uuid.UUID             `json:"listing_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, listingID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		ListingID: listingID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewListingMessage describes a listing; details may be nil
func NewListingMessage(msgType MessageType, l *listing.Listing, details *inbound.ListingDetails) *ServerMessage {
	msg := NewServerMessage(msgType)
	id := l.ID
	msg.ListingID = &id
	msg.Data["listing"] = listingData(l)
	if details != nil {
		msg.Data["status"] = details.Status
		msg.Data["current_price"] = money.Format(details.CurrentPrice)
		msg.Data["bid_count"] = details.BidCount
		if details.WinningBid != nil {
			msg.Data["winning_bid_id"] = details.WinningBid.ID
			msg.Data["winning_bidder_id"] = details.WinningBid.BidderID
		}
	}
	return msg
}

// NewListingsMessage carries a catalog view
func NewListingsMessage(listings []*listing.Listing) *ServerMessage {
	msg := NewServerMessage(MessageTypeAuctionUpdate)
	data := make([]map[string]interface{}, 0, len(listings))
	for _, l := range listings {
		data = append(data, listingData(l))
	}
	msg.Data["listings"] = data
	msg.Data["count"] = len(listings)
	return msg
}

func listingData(l *listing.Listing) map[string]interface{} {
	data := map[string]interface{}{
		"id":          l.ID,
		"seller_id":   l.SellerID,
		"title":       l.Title,
		"description": l.Description,
		"brand_name":  l.BrandName,
		"is_auction":  l.IsAuction,
		"created_at":  l.CreatedAt.Format(time.RFC3339),
	}
	if l.IsAuction {
		data["base_price"] = money.Format(l.BasePrice)
		if l.ReservePrice != nil {
			data["has_reserve"] = true
		}
		if l.AuctionEndTime != nil {
			data["end_time"] = l.AuctionEndTime.Format(time.RFC3339)
		}
	} else {
		data["price"] = money.Format(l.Price)
	}
	return data
}

func (m *ClientMessage) validateListingID() error {
	if m.ListingID == nil || *m.ListingID == uuid.Nil {
		return shared.ErrListingIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetListing, MessageTypeRelist:
		if err := m.validateListingID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateListingID(); err != nil {
			return err
		}
		if _, err := m.Amount("amount"); err != nil {
			return err
		}
	case MessageTypeCreateAuction:
		if _, ok := m.Data["duration_days"].(float64); !ok {
			return shared.ErrDurationRequired
		}
		if _, err := m.OptionalAmount("base_price"); err != nil {
			return err
		}
	case MessageTypeListActive, MessageTypeListEnded, MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}

// Amount reads a major-unit amount from Data, given as a JSON number or a decimal string
func (m *ClientMessage) Amount(key string) (int64, error) {
	switch v := m.Data[key].(type) {
	case float64:
		return money.FromFloat(v)
	case string:
		return money.Parse(v)
	default:
		return 0, shared.ErrInvalidAmount
	}
}

// OptionalAmount is Amount, except that a missing key reads as zero
func (m *ClientMessage) OptionalAmount(key string) (int64, error) {
	if _, present := m.Data[key]; !present {
		return 0, nil
	}
	return m.Amount(key)
}

// String reads an optional string from Data
func (m *ClientMessage) String(key string) string {
	s, _ := m.Data[key].(string)
	return s
}
