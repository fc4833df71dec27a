package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

// The live feed is read-only: viewers watch auctions, they never mutate
// them. Bids and closures arrive over REST and background jobs.
const (
	// Client to server
	MessageTypeWatch      MessageType = "watch"
	MessageTypeUnwatch    MessageType = "unwatch"
	MessageTypeGetAuction MessageType = "get_auction"
	MessageTypePing       MessageType = "ping"

	// Server to client
	MessageTypeBidPlaced       MessageType = "bid_placed"
	MessageTypeAuctionExtended MessageType = "auction_extended"
	MessageTypeAuctionClosed   MessageType = "auction_closed"
	MessageTypeAuctionUpdate   MessageType = "auction_update"
	MessageTypeError           MessageType = "error"
	MessageTypePong            MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
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

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
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

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeWatch, MessageTypeUnwatch, MessageTypeGetAuction:
		return m.validateAuctionID()
	case MessageTypePing:
		return nil
	default:
		return shared.ErrUnknownMessageType
	}
}
