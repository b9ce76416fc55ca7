package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"studio-chat/internal/scope"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum frame size allowed from peer.
)

// inboundFrame is what the UI sends over the socket.
type inboundFrame struct {
	Type     string `json:"type"` // "message" | "typing" | "select_client"
	Content  string `json:"content,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// outboundFrame is what the UI receives.
type outboundFrame struct {
	Type      string         `json:"type"` // "message" | "typing" | "history" | "scope" | "send_failed" | "error"
	Message   *Message       `json:"message,omitempty"`
	Messages  []Message      `json:"messages,omitempty"`
	Typing    []string       `json:"typing,omitempty"`
	Scope     *scope.Scope   `json:"scope,omitempty"`
	Clients   []scope.Client `json:"clients,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Client is the middleman between one websocket connection and its chat
// session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *Session
	send    chan []byte
	log     *zap.Logger
}

// handleEvent turns session events into outbound frames. Invoked by the
// session outside its lock.
func (c *Client) handleEvent(ev Event) {
	switch ev.Type {
	case EventInsert:
		c.enqueue(outboundFrame{Type: "message", Message: ev.Message})
	case EventTyping:
		c.enqueue(outboundFrame{Type: "typing", Typing: c.session.Typing()})
	case EventReconnected:
		// The store was re-synced; replay the whole window.
		c.enqueue(outboundFrame{Type: "history", Messages: c.session.Messages()})
	}
}

func (c *Client) handleSendFailed(messageID string) {
	c.enqueue(outboundFrame{Type: "send_failed", MessageID: messageID})
}

func (c *Client) enqueue(frame outboundFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("marshal outbound frame", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		// Slow consumer; drop the frame rather than block the session.
		c.log.Warn("dropping frame for slow client")
	}
}

// sendScope pushes the current scope and selectable clients.
func (c *Client) sendScope(ctx context.Context) {
	sc := c.session.Scope()
	clients, err := c.session.AvailableClients(ctx)
	if err != nil {
		c.log.Warn("list available clients", zap.Error(err))
	}
	c.enqueue(outboundFrame{Type: "scope", Scope: &sc, Clients: clients})
}

// readPump pumps frames from the websocket connection into the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.session.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read", zap.Error(err))
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.enqueue(outboundFrame{Type: "error", Error: "malformed frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame inboundFrame) {
	ctx := context.Background()

	switch frame.Type {
	case "message":
		if _, err := c.session.SendMessage(ctx, frame.Content); err != nil {
			if errors.Is(err, ErrEmptyMessage) {
				return
			}
			// Surfaced so the UI can offer a retry; nothing landed locally.
			c.enqueue(outboundFrame{Type: "error", Error: "message not sent"})
			c.log.Warn("send message", zap.Error(err))
		}

	case "typing":
		if err := c.session.SendTyping(ctx, frame.IsTyping); err != nil {
			c.log.Warn("send typing", zap.Error(err))
		}

	case "select_client":
		// The resolver pins client-role identities to their own client, so
		// forwarding the raw request is safe.
		if err := c.session.SetSelectedClient(ctx, frame.ClientID); err != nil {
			c.enqueue(outboundFrame{Type: "error", Error: "could not switch channel"})
			return
		}
		c.sendScope(ctx)
		c.enqueue(outboundFrame{Type: "history", Messages: c.session.Messages()})

	default:
		c.enqueue(outboundFrame{Type: "error", Error: "unknown frame type"})
	}
}

// writePump pumps frames from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
