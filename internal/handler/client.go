package handler

import (
	"net/http"

	"citymonitor/internal/logger"
	wshub "citymonitor/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler streams annotated frames to a viewer. The optional
// camera query parameter narrows the stream to one camera.
func ViewWebsocketHandler(hub *wshub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := r.URL.Query().Get("camera")
		serveSubscription(w, r, hub, wshub.FrameTopic(camera), logger)
	}
}

// AlertsWebsocketHandler notifies clients whenever the alert list changes.
func AlertsWebsocketHandler(hub *wshub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveSubscription(w, r, hub, wshub.AlertsTopic, logger)
	}
}

// serveSubscription keeps the connection subscribed to topic until the
// client goes away. Incoming messages are discarded.
func serveSubscription(w http.ResponseWriter, r *http.Request, hub *wshub.HubService, topic string, logger *logger.Logger) {
	connection, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade error: %v", err)
		return
	}

	sub := hub.Subscribe(connection, topic)
	if sub == nil {
		return
	}
	defer sub.Close()

	logger.Info("Viewer connected to %s", topic)

	for {
		if _, _, err := connection.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("Viewer disconnected normally")
			} else {
				logger.Warning("Viewer disconnected with error: %v", err)
			}
			return
		}
	}
}
