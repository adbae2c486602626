// Package rest is the synchronous HTTP surface: accounts, directory, history and search.
package rest

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/origin"
	"chat-relay/infrastructure/wire"
	"chat-relay/services"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxBodySize = 1 << 20

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

type userResponse struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	issuer      *auth.TokenIssuer
	policy      *origin.Policy
	extraRoutes map[string]http.Handler
}

func NewHandler(log *slog.Logger, authService services.IAuthService, chatService services.IChatService,
	issuer *auth.TokenIssuer, policy *origin.Policy) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		chatService: chatService,
		issuer:      issuer,
		policy:      policy,
		extraRoutes: make(map[string]http.Handler),
	}
}

// Mount adds a route served next to the API, the websocket endpoint for instance.
func (h *Handler) Mount(pattern string, handler http.Handler) *Handler {
	h.extraRoutes[pattern] = handler
	return h
}

// Routes builds the full HTTP handler with CORS and request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("GET /api/users", Authenticated(h.issuer, h.users))
	mux.HandleFunc("GET /api/presence", Authenticated(h.issuer, h.presence))
	mux.HandleFunc("GET /api/messages/{username}", Authenticated(h.issuer, h.messages))
	mux.HandleFunc("GET /api/messages/{username}/search", Authenticated(h.issuer, h.search))
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /debug/stats", h.stats)
	for pattern, handler := range h.extraRoutes {
		mux.Handle(pattern, handler)
	}
	return Logging(h.log, CORS(h.policy, mux))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	token, err := h.authService.Register(body.Username, body.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tokenResponse{
		Token:    token.String(),
		Username: body.Username,
		Message:  "User registered successfully",
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	token, err := h.authService.Login(body.Username, body.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tokenResponse{Token: token.String(), Username: body.Username})
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	entries, err := h.chatService.Directory(identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response := make([]userResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, userResponse{Username: entry.Username.String(), Online: entry.Online})
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) presence(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, wire.ToIdentities(h.chatService.OnlineUsers()))
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	messages, err := h.chatService.GetMessages(r.Context(), domain.GetHistoryCommand{
		Requester: identity,
		A:         identity,
		B:         domain.Identity(r.PathValue("username")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wire.ToMessagePayloads(messages))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	peer := domain.Identity(r.PathValue("username"))
	messages, err := h.chatService.Search(r.Context(), identity, peer, r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wire.ToMessagePayloads(messages))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Chat relay is running")
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.chatService.Stats())
}

func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: unreadable body", errors.ErrValidation)
	}
	if err := wire.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", errors.ErrValidation)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := wire.Marshal(v)
	if err != nil {
		h.log.Error("Unable to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	h.writeJSON(w, status, wire.ErrorPayload{Message: err.Error()})
}
