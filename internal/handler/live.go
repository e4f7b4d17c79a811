package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"sensorlog/internal/logger"
	hub "sensorlog/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveWebsocketHandler registers a viewer with the hub, which pushes every
// dashboard state change to it.
func LiveWebsocketHandler(h *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		h.Register(connection)
		defer h.Unregister(connection)

		logger.Info("Viewer connected")

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected: %v", err)
				}
				return
			}
		}
	}
}
