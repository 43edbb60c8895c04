package websocket

import (
	"encoding/json"
	"log/slog"

	"shopsync/internal/event"
)

// Hub fans sync lifecycle events out to connected admin dashboards.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	bus event.Bus
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
	}
}

func (h *Hub) Run() {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case e := <-events:
			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumers are dropped rather than allowed
					// to block the broadcast.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}
