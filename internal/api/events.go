package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Title: Stream Events
// @Route: GET /api/events
// @Description: Websocket stream of OracleInitialized, PriceChanged and PriceInfo notifications as they are delivered
// @Response: websocket messages {"tx_id": "...", "height": 3, "name": "PriceChanged", "event": {...}, "data": "base64"}
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Event stream not available")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}
	defer conn.Close()

	notes, cancel := s.broker.Subscribe()
	defer cancel()
	s.logger.Info(fmt.Sprintf("API: event subscriber connected from %s", r.RemoteAddr))

	// The read pump only exists to notice the client going away.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case note, ok := <-notes:
			if !ok {
				return
			}
			payload, err := json.Marshal(note)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			s.logger.Info(fmt.Sprintf("API: event subscriber %s disconnected", r.RemoteAddr))
			return
		case <-r.Context().Done():
			return
		}
	}
}
