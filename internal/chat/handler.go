package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"studio-chat/internal/middleware"
	"studio-chat/internal/scope"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

type Handler struct {
	hub       *Hub
	repo      MessageRepo
	entities  scope.EntityStore
	transport Transport
	log       *zap.Logger
	opts      SessionOptions
}

func NewHandler(hub *Hub, repo MessageRepo, entities scope.EntityStore, transport Transport, log *zap.Logger, opts SessionOptions) *Handler {
	return &Handler{
		hub:       hub,
		repo:      repo,
		entities:  entities,
		transport: transport,
		log:       log,
		opts:      opts,
	}
}

// ServeWs upgrades the connection and binds a chat session to it. The
// initial channel comes from the ?client= query param; client-role
// identities end up in their own channel no matter what they pass.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
		log:  h.log.With(zap.String("user", ident.UserID)),
	}

	opts := h.opts
	opts.OnEvent = client.handleEvent
	opts.OnSendFailed = client.handleSendFailed

	resolver := scope.NewResolver(ident, h.entities)
	client.session = NewSession(ident, resolver, h.repo, h.transport, h.log, opts)

	client.hub.Register <- client
	go client.writePump()

	if err := client.session.Start(r.Context(), r.URL.Query().Get("client")); err != nil {
		client.enqueue(outboundFrame{Type: "error", Error: "could not open channel"})
	}
	client.sendScope(r.Context())
	client.enqueue(outboundFrame{Type: "history", Messages: client.session.Messages()})

	go client.readPump()
}

// GetChatHistory serves the bounded recent window for the caller's channel.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sc, err := h.resolveScope(r, w)
	if err != nil {
		return
	}

	msgs, err := h.repo.RecentMessages(r.Context(), sc.ChannelID, h.opts.HistorySize)
	if err != nil {
		h.log.Error("load history", zap.String("user", ident.UserID), zap.Error(err))
		http.Error(w, "could not load messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}

	writeJSON(w, map[string]any{
		"channel_id": sc.ChannelID,
		"messages":   msgs,
	})
}

// GetSuggestions resolves mention candidates. Visibility derives from the
// authenticated identity; no client ID is accepted from the caller.
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	kind := scope.SuggestionKind(r.URL.Query().Get("type"))
	switch kind {
	case scope.KindUser, scope.KindProject, scope.KindMilestone, scope.KindTask:
	default:
		http.Error(w, "invalid mention type", http.StatusBadRequest)
		return
	}

	resolver := scope.NewResolver(ident, h.entities)
	items, err := resolver.Suggestions(r.Context(), kind, r.URL.Query().Get("q"))
	if err != nil {
		h.log.Error("resolve suggestions", zap.String("user", ident.UserID), zap.Error(err))
		http.Error(w, "could not resolve suggestions", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []scope.SuggestionItem{}
	}

	writeJSON(w, items)
}

// ListClients serves the clients the caller may select a channel for.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resolver := scope.NewResolver(ident, h.entities)
	clients, err := resolver.AvailableClients(r.Context())
	if err != nil {
		h.log.Error("list clients", zap.String("user", ident.UserID), zap.Error(err))
		http.Error(w, "could not list clients", http.StatusInternalServerError)
		return
	}
	if clients == nil {
		clients = []scope.Client{}
	}

	writeJSON(w, map[string]any{
		"clients":           clients,
		"can_select_client": resolver.CanSelectClient(),
	})
}

func (h *Handler) resolveScope(r *http.Request, w http.ResponseWriter) (scope.Scope, error) {
	ident, _ := middleware.IdentityFrom(r.Context())
	resolver := scope.NewResolver(ident, h.entities)

	sc, err := resolver.Resolve(r.Context(), r.URL.Query().Get("client"))
	if err != nil {
		h.log.Warn("resolve scope", zap.String("user", ident.UserID), zap.Error(err))
		http.Error(w, "could not resolve channel scope", http.StatusBadGateway)
		return scope.Scope{}, err
	}
	return sc, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
