// Package realtime pushes committed calendar changes to websocket subscribers of the same company.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"innkeep/internal/app/outbox"
)

// Message is the frame sent to subscribers.
type Message struct {
	Type       string          `json:"type"`
	CompanyID  string          `json:"company_id"`
	Aggregate  string          `json:"aggregate_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type envelope struct {
	company string
	payload []byte
}

// Hub maintains subscribers and fans out messages per company.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run is the hub event loop; it returns when ctx is done and closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("calendar subscriber connected", "company_id", client.company, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("calendar subscriber disconnected", "company_id", client.company, "total", total)

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.company != env.company {
					continue
				}
				select {
				case client.send <- env.payload:
				default:
					// slow subscriber
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Deliver publishes committed records to the subscribers of their company.
func (h *Hub) Deliver(_ context.Context, records []outbox.EventRecord) {
	for _, rec := range records {
		if rec.Tenant == "" {
			continue
		}
		msg := Message{
			Type:       rec.Name,
			CompanyID:  rec.Tenant,
			Aggregate:  rec.Aggregate,
			OccurredAt: rec.OccurredAt,
		}
		if json.Valid(rec.Payload) {
			msg.Data = rec.Payload
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			h.logger.Warn("realtime encode failed", "event", rec.Name, "err", err)
			continue
		}
		select {
		case h.broadcast <- envelope{company: rec.Tenant, payload: payload}:
		default:
			h.logger.Warn("realtime broadcast channel full, dropping message", "event", rec.Name)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one subscription bound to a company.
type Client struct {
	company string
	send    chan []byte
}

func NewClient(company string) *Client {
	return &Client{company: company, send: make(chan []byte, 64)}
}

func (c *Client) Send() <-chan []byte {
	return c.send
}

var _ outbox.Sink = (*Hub)(nil)
