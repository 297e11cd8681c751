package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/internal/middleware"
	"jyotish-chat/internal/presence"
	"jyotish-chat/internal/services"
	"jyotish-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(token string) (chat.Identity, error)
}

// Handler owns the connection lifecycle: it authenticates the handshake,
// registers presence, and announces roster changes to every connection.
type Handler struct {
	auth     Authenticator
	hub      *Hub
	presence *presence.Registry
	router   *Router
	upgrader websocket.Upgrader
	log      *WebSocketLogger

	// lifecycle orders attach and detach so roster snapshots go out in the
	// order the registry changed.
	lifecycle sync.Mutex
}

func NewHandler(auth Authenticator, hub *Hub, registry *presence.Registry, router *Router, allowedOrigins []string, log *WebSocketLogger) *Handler {
	if log == nil {
		log = NewWebSocketLogger(nil)
	}
	return &Handler{
		auth:     auth,
		hub:      hub,
		presence: registry,
		router:   router,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Connect authenticates and upgrades the request, then serves the connection
// until it closes. Authentication failures never reach the upgrade.
func (h *Handler) Connect(c *gin.Context) {
	identity, err := h.auth.Authenticate(extractToken(c))
	if err != nil {
		h.log.Warn("auth_failed", nil, zap.String("remote_ip", c.ClientIP()), zap.Error(err))
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("authentication error", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", nil, zap.String("user_id", identity.ID), zap.Error(err))
		return
	}

	client := NewClient(conn, identity)
	h.Attach(client)
	go client.WritePump(h.log)

	ctx, cancel := context.WithCancel(services.WithIdentity(context.Background(), identity))
	defer cancel()
	client.ReadPump(ctx, h.router.Dispatch, h.log)

	h.Detach(client)
}

// Attach moves an authenticated client to Active: it joins the hub, takes
// over the identity's presence entry and the new roster goes to everyone.
func (h *Handler) Attach(client *Client) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	if !client.transition(StateActive) {
		return
	}
	h.hub.Register(client)
	if previous, replaced := h.presence.Register(client.Identity.ID, client.Identity.Role, client.ID); replaced && previous != client.ID {
		h.log.Warn("presence_replaced", client, zap.String("previous_client_id", previous))
	}
	h.broadcastRoster()
	h.log.Info("connected", client, zap.String("role", string(client.Identity.Role)))
}

// Detach closes the client and announces the identity as offline. It is safe
// to call more than once.
func (h *Handler) Detach(client *Client) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	if !client.transition(StateClosed) {
		return
	}
	h.hub.Unregister(client)
	h.presence.Deregister(client.Identity.ID)
	h.broadcastRoster()
	h.broadcast(EventUserStatusUpdate, statusPayload{UserID: client.Identity.ID, Status: presence.StatusOffline})
	h.log.Info("disconnected", client)
}

func (h *Handler) broadcastRoster() {
	h.broadcast(EventOnlineUsers, h.presence.Snapshot())
}

func (h *Handler) broadcast(event string, data interface{}) {
	payload, err := encodeFrame(event, data, nil)
	if err != nil {
		h.log.Error("encode_failed", nil, err, zap.String("ws_event", event))
		return
	}
	h.hub.BroadcastAll(payload, nil)
}

func extractToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}
	return middleware.ExtractBearer(c)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.OriginAllowed(origin, allowed)
	}
}
