// Package relay is a development STOMP broker that speaks the backend's
// /ws-native protocol: private chat routing, error queues and history.
package relay

import (
	"sync"
)

// subscriber is one SUBSCRIBE of a client.
type subscriber struct {
	client *Client
	id     string
}

// Hub tracks connected clients and their subscriptions.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	destination map[string][]subscriber
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		destination: make(map[string][]subscriber),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a client and all of its subscriptions.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c)
	for dest, subs := range h.destination {
		kept := subs[:0]
		for _, s := range subs {
			if s.client != c {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(h.destination, dest)
		} else {
			h.destination[dest] = kept
		}
	}
}

// Subscribe routes frames for destination to c under subscription id.
// Subscribing the same id twice replaces the earlier destination.
func (h *Hub) Subscribe(c *Client, id, destination string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for dest, subs := range h.destination {
		for i, s := range subs {
			if s.client != c || s.id != id {
				continue
			}
			if rest := append(subs[:i:i], subs[i+1:]...); len(rest) == 0 {
				delete(h.destination, dest)
			} else {
				h.destination[dest] = rest
			}
			break
		}
	}
	h.destination[destination] = append(h.destination[destination], subscriber{client: c, id: id})
}

// Publish hands body to every subscriber of destination. It returns the
// number of subscribers reached.
func (h *Hub) Publish(destination string, body []byte) int {
	h.mu.RLock()
	subs := append([]subscriber(nil), h.destination[destination]...)
	h.mu.RUnlock()

	for _, s := range subs {
		s.client.deliver(destination, s.id, body)
	}
	return len(subs)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of subscriptions on destination.
func (h *Hub) SubscriberCount(destination string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.destination[destination])
}
