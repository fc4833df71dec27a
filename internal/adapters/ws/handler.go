package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages live-feed connections and routes their messages. The
// feed is read-only; every state change a viewer sees originated in the
// REST API or a background job.
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	auctionService inbound.AuctionService
	auctionRepo    outbound.AuctionRepository
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	AuctionService inbound.AuctionService
	AuctionRepo    outbound.AuctionRepository
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		auctionService: params.AuctionService,
		auctionRepo:    params.AuctionRepo,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	viewerIDStr := r.URL.Query().Get("viewer_id")
	if viewerIDStr == "" {
		http.Error(w, "viewer_id is required", http.StatusBadRequest)
		return
	}

	viewerID, err := uuid.Parse(viewerIDStr)
	if err != nil {
		http.Error(w, "invalid viewer_id format", http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		ViewerID: viewerID,
		Conn:     conn,
		Handler:  handler,
		Logger:   handler.logger,
	})

	handler.registerClient(client)
	handler.createEventChannel(client.id)

	client.Start()
	go handler.forwardEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().
		Str("client_id", client.id).
		Str("viewer_id", client.viewerID.String()).
		Msg("Live feed client connected")
}

func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	// The broadcaster owns closing the channel on the last unsubscribe.
	delete(handler.eventChannels, clientID)
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	client.Stop()
	handler.removeEventChannel(client.id)

	handler.logger.Info().
		Str("client_id", client.id).
		Str("viewer_id", client.viewerID.String()).
		Int("total_clients", total).
		Msg("Live feed client disconnected")
}

// forwardEvents drains the client's local event channel into its socket
func (handler *WsHandler) forwardEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := client.Send(handler.convertEventToMessage(event)); err != nil {
				handler.logger.Error().Err(err).
					Str("client_id", client.id).
					Str("event_type", string(event.Type)).
					Msg("Failed to forward event to client")
			}

		case <-client.ctx.Done():
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeWatch:
		return handler.handleWatch(client, msg)
	case MessageTypeUnwatch:
		return handler.handleUnwatch(client, msg)
	case MessageTypeGetAuction:
		return handler.handleGetAuction(client, msg)
	default:
		handler.logger.Warn().
			Str("client_id", client.id).
			Str("message_type", string(msg.Type)).
			Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	msgType := MessageTypeAuctionUpdate
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		msgType = MessageTypeBidPlaced
	case outbound.EventTypeAuctionExtended:
		msgType = MessageTypeAuctionExtended
	case outbound.EventTypeAuctionClosed:
		msgType = MessageTypeAuctionClosed
	}
	return &ServerMessage{
		Type:      msgType,
		AuctionID: &event.AuctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// ConnectedClients returns the number of connected clients
func (handler *WsHandler) ConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) handleWatch(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		return fmt.Errorf("no event channel for client %s", client.id)
	}

	if err := handler.broadcaster.Subscribe(ctx, *msg.AuctionID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).
			Str("client_id", client.id).
			Str("auction_id", msg.AuctionID.String()).
			Msg("Failed to watch auction")
		return err
	}

	handler.recordWatcherCount(ctx, *msg.AuctionID)

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "watching"
	response.Data["watcher_count"] = handler.broadcaster.SubscriberCount(ctx, *msg.AuctionID)

	handler.logger.Info().
		Str("client_id", client.id).
		Str("auction_id", msg.AuctionID.String()).
		Msg("Client watching auction")
	return client.Send(response)
}

func (handler *WsHandler) handleUnwatch(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	if err := handler.broadcaster.Unsubscribe(ctx, *msg.AuctionID, client.id); err != nil {
		return err
	}

	handler.recordWatcherCount(ctx, *msg.AuctionID)

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "stopped_watching"
	return client.Send(response)
}

func (handler *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	a, err := handler.auctionService.GetAuction(ctx, *msg.AuctionID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["auction_id"] = a.ID
	response.Data["case_id"] = a.CaseID
	response.Data["status"] = string(a.Status)
	response.Data["start_time"] = a.StartTime.Format(time.RFC3339)
	response.Data["end_time"] = a.EndTime.Format(time.RFC3339)
	response.Data["min_increment"] = a.MinIncrement
	response.Data["extension_count"] = a.ExtensionCount
	response.Data["watcher_count"] = handler.broadcaster.SubscriberCount(ctx, a.ID)
	if a.CurrentBid != nil {
		response.Data["current_bid"] = *a.CurrentBid
	}
	return client.Send(response)
}

// recordWatcherCount persists the live viewer count, best effort
func (handler *WsHandler) recordWatcherCount(ctx context.Context, auctionID uuid.UUID) {
	count := handler.broadcaster.SubscriberCount(ctx, auctionID)
	if err := handler.auctionRepo.UpdateWatcherCount(ctx, auctionID, count); err != nil {
		handler.logger.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Msg("Failed to record watcher count")
	}
}
