package ws

import (
	"encoding/json"
	"sync"

	"loyalcrm/internal/service"
)

// Client is a single WebSocket subscriber. AccountID 0 means the client
// watches all accounts (dashboard view, admin tokens only).
type Client struct {
	AccountID uint
	Send      chan []byte
	hub       *ActivityHub
	mu        sync.Mutex
	closed    bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// ActivityHub broadcasts committed ledger entries to subscribed clients.
// It implements service.EntryPublisher.
type ActivityHub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewActivityHub() *ActivityHub {
	return &ActivityHub{clients: make(map[*Client]struct{})}
}

func (h *ActivityHub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c] = struct{}{}
}

func (h *ActivityHub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// PublishEntry fans a committed entry out to every subscriber watching the
// account. Slow clients are skipped rather than blocking the ledger path.
func (h *ActivityHub) PublishEntry(evt service.EntryEvent) {
	data, _ := json.Marshal(map[string]interface{}{"type": "ledger.entry", "entry": evt})
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.AccountID == 0 || c.AccountID == evt.AccountID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

func (h *ActivityHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
