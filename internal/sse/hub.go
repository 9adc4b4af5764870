package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/obs"
	"github.com/google/uuid"
)

const (
	EventSupplyAdjusted   = "supply_adjusted"
	EventTransferRecorded = "transfer_recorded"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type SupplyAdjustedEvent struct {
	TokenID     uuid.UUID `json:"token_id"`
	Symbol      string    `json:"symbol"`
	Action      string    `json:"action"`
	Amount      int64     `json:"amount"`
	TotalSupply int64     `json:"total_supply"`
	ActorID     uuid.UUID `json:"actor_id"`
	At          time.Time `json:"at"`
}

type TransferRecordedEvent struct {
	TokenID       uuid.UUID `json:"token_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	FromAddress   string    `json:"from_address"`
	ToAddress     string    `json:"to_address"`
	Amount        int64     `json:"amount"`
	At            time.Time `json:"at"`
}

// Client is one event stream connection, watching a single token.
type Client struct {
	ID      string
	UserID  uuid.UUID
	TokenID uuid.UUID
	Send    chan []byte
}

type TokenMessage struct {
	TokenID uuid.UUID
	Event   Event
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *TokenMessage
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *TokenMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
				obs.SSEClientDisconnected()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			obs.SSEClientConnected()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				obs.SSEClientDisconnected()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Event)
			if err != nil {
				slog.Error("failed to encode event", "type", msg.Event.Type, "error", err)
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients {
				if client.TokenID != msg.TokenID {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// slow client, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SupplyAdjusted publishes a committed mint or burn.
func (h *Hub) SupplyAdjusted(token *models.Token, adj *models.SupplyAdjustment) {
	h.publish(&TokenMessage{
		TokenID: token.ID,
		Event: Event{
			Type: EventSupplyAdjusted,
			Data: SupplyAdjustedEvent{
				TokenID:     token.ID,
				Symbol:      token.Symbol,
				Action:      adj.Action,
				Amount:      adj.Amount,
				TotalSupply: adj.TotalSupplyAfter,
				ActorID:     adj.ActorID,
				At:          adj.CreatedAt,
			},
		},
	})
}

// TransferRecorded publishes a newly recorded transfer.
func (h *Hub) TransferRecorded(t *models.Transaction) {
	h.publish(&TokenMessage{
		TokenID: t.TokenID,
		Event: Event{
			Type: EventTransferRecorded,
			Data: TransferRecordedEvent{
				TokenID:       t.TokenID,
				TransactionID: t.ID,
				FromAddress:   t.FromAddress,
				ToAddress:     t.ToAddress,
				Amount:        t.Amount,
				At:            t.Timestamp,
			},
		},
	})
}

// publish never blocks the committing request; events are dropped when the
// queue is full.
func (h *Hub) publish(msg *TokenMessage) {
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("event queue full, dropping event", "type", msg.Event.Type, "token_id", msg.TokenID)
	}
}
