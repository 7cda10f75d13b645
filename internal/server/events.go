package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type snapshotMessage struct {
	Type    string      `json:"type"`
	Request requestView `json:"request"`
}

// handleEvents upgrades to a websocket, sends the current snapshot, then
// streams tracker events until the request finishes or the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h, ok := s.manager.Get(id)
	if !ok {
		// Archived requests have no live stream; the snapshot endpoint serves them.
		s.writeError(w, http.StatusNotFound, "unknown request: "+id)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "request_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Subscribe before the snapshot so no transition falls between them.
	events := h.Subscribe(ctx)
	if err := s.send(conn, snapshotMessage{Type: "snapshot", Request: newRequestView(h.Snapshot())}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "request finished"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.send(conn, ev); err != nil {
				s.logger.Debug("websocket write failed", "request_id", id, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-clientGone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
