package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/armorclaw/pitchscope/pkg/errors"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	streamSendBuffer = 256
)

var streamComponent = errors.ComponentMeta{Name: "ErrorStream", File: sourceFile()}

// streamMessage is one frame on the error stream
type streamMessage struct {
	Type      string               `json:"type"`
	Record    *errors.ErrorRecord  `json:"record,omitempty"`
	Errors    []errors.ErrorRecord `json:"errors,omitempty"`
	Cleared   int                  `json:"cleared,omitempty"`
	Timestamp string               `json:"timestamp"`
}

// streamClient is a connected error stream consumer
type streamClient struct {
	ID   string
	Send chan []byte
	done chan struct{}
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkStreamOrigin,
	}
}

// checkStreamOrigin accepts same-host origins and configured origins
func (s *Server) checkStreamOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.originAllowed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func (s *Server) handleErrorStream(w http.ResponseWriter, r *http.Request) {
	handle, ok := errors.HandleFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "error log not installed")
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := &streamClient{
		ID:   uuid.NewString(),
		Send: make(chan []byte, streamSendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ClientConnected()
	}
	s.logger.Info("error stream client connected", "client_id", client.ID)

	// The snapshot frame is queued before any event frame, and a record
	// appears in exactly one of them.
	var queued sync.Mutex
	queued.Lock()
	snapshot, cancel := handle.SubscribeSnapshot(func(ev errors.Event) {
		queued.Lock()
		defer queued.Unlock()
		s.sendEvent(client, ev)
	})
	s.sendToClient(client, streamMessage{Type: "snapshot", Errors: snapshot})
	queued.Unlock()

	defer func() {
		cancel()
		s.removeClient(client.ID)
		if s.metrics != nil {
			s.metrics.ClientDisconnected()
		}
		s.logger.Info("error stream client disconnected", "client_id", client.ID)
	}()

	go s.guard.Boundary(streamComponent, "writePump", func() error {
		s.writePump(conn, client)
		return nil
	})
	s.readPump(conn, client, handle)
}

func (s *Server) sendEvent(client *streamClient, ev errors.Event) {
	switch ev.Type {
	case errors.EventCaptured:
		s.sendToClient(client, streamMessage{Type: "captured", Record: ev.Record})
	case errors.EventCleared:
		s.sendToClient(client, streamMessage{Type: "cleared", Cleared: ev.Cleared})
	}
}

// sendToClient queues msg without blocking; a client that cannot keep up
// misses messages rather than stalling capture.
func (s *Server) sendToClient(client *streamClient, msg streamMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case <-client.done:
	case client.Send <- data:
	default:
		s.logger.Warn("error stream client too slow, message dropped", "client_id", client.ID, "type", msg.Type)
	}
}

func (s *Server) readPump(conn *websocket.Conn, client *streamClient, handle *errors.Handle) {
	conn.SetReadLimit(4 * 1024)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("error stream read failed", "client_id", client.ID, "error", err)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			s.sendToClient(client, streamMessage{Type: "pong"})
		case "snapshot":
			s.sendToClient(client, streamMessage{Type: "snapshot", Errors: handle.Errors()})
		case "clear":
			handle.Clear()
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-client.done:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case message := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(client.done)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, client := range s.clients {
		delete(s.clients, id)
		close(client.done)
	}
}

// ClientCount returns the number of connected error stream clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
