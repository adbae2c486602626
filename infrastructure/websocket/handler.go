package websocket

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/origin"
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated requests into identity channels.
type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	issuer     *auth.TokenIssuer
	upgrader   websocket.Upgrader
	bufferSize int
	keepAlive  KeepAlive

	mu          sync.Mutex
	connections map[*Connection]struct{}
}

func NewHandler(log *slog.Logger, service services.IChatService, issuer *auth.TokenIssuer,
	policy *origin.Policy, bufferSize int, keepAlive KeepAlive) *Handler {
	return &Handler{
		log:     log,
		service: service,
		issuer:  issuer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.CheckOrigin,
		},
		bufferSize:  bufferSize,
		keepAlive:   keepAlive,
		connections: make(map[*Connection]struct{}),
	}
}

// ServeHTTP refuses the upgrade when the token is missing or invalid.
// Browsers cannot set headers on a websocket handshake so ?token= is accepted too.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.issuer.Validate(token)
	if err != nil {
		h.log.Info("Websocket upgrade refused", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Info("Websocket upgrade failed", "error", err)
		return
	}

	connection := NewConnection(h.log, claims.Identity(), h.service, h.bufferSize, h.keepAlive, h.untrack)
	connection.Serve(context.WithoutCancel(r.Context()), conn)
	h.track(connection)
	h.log.Debug("Websocket connected", "identity", claims.Identity(), "remote", r.RemoteAddr)
}

// track skips connections that already started closing, their untrack may have run.
func (h *Handler) track(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-c.Done():
		return
	default:
	}
	h.connections[c] = struct{}{}
}

func (h *Handler) untrack(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, c)
}

// Count returns the number of open connections.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Shutdown closes every open connection, each one logging out on its way.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	connections := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		connections = append(connections, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range connections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()
}
