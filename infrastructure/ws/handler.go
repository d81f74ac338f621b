package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/services"
)

// Handler upgrades HTTP requests to websocket connections and hands each
// one to its own Client lifecycle.
type Handler struct {
	log        *slog.Logger
	hub        contract.IHub
	service    services.IChatService
	upgrader   websocket.Upgrader
	sendBuffer int
	readLimit  int64
	timeouts   Timeouts
}

// NewHandler builds the upgrade endpoint. allowedOrigin restricts the
// Origin header; "*" accepts any browser origin.
func NewHandler(log *slog.Logger, hub contract.IHub, service services.IChatService, allowedOrigin string, sendBuffer int, readLimit int64, timeouts Timeouts) *Handler {
	return &Handler{
		log:     log,
		hub:     hub,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		sendBuffer: sendBuffer,
		readLimit:  readLimit,
		timeouts:   timeouts,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	NewClient(h.log, conn, h.hub, h.service, h.sendBuffer, h.readLimit, h.timeouts).Start()
}
