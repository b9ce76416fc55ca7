package chat

import (
	"context"

	"go.uber.org/zap"
)

// Hub tracks the live websocket clients. The run loop is the only thing that
// touches the client set, so the set is thread-safe by construction.
type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		log:        log.With(zap.String("component", "hub")),
	}
}

// Run manages the client set until the context ends, then shuts every
// client down.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			h.log.Debug("client registered", zap.String("user", client.session.CurrentUser().UserID))

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				client.session.Close()
			}
			return
		}
	}
}
