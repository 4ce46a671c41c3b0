// Package ws pushes domain events to the desktop shell over WebSocket.
package ws

import (
	"net/http"
	"sync"
	"time"

	"peerchat/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// The API binds to loopback only; the shell is the sole client.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventFeed bridges the session event stream to WebSocket clients. Each
// client gets its own subscription; a slow client loses events, never stalls
// the session.
type EventFeed struct {
	sessionService ports.SessionService

	mu      sync.Mutex
	clients map[string]*websocket.Conn

	pingInterval time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewEventFeed(sessionService ports.SessionService, logger *zap.SugaredLogger) *EventFeed {
	return &EventFeed{
		sessionService: sessionService,
		clients:        make(map[string]*websocket.Conn),
		pingInterval:   30 * time.Second,
		writeTimeout:   10 * time.Second,
		logger:         logger,
	}
}

func (f *EventFeed) SetupRoutes(router *gin.Engine) {
	router.GET("/ws/events", func(c *gin.Context) {
		f.handleClient(c.Writer, c.Request)
	})
}

func (f *EventFeed) handleClient(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	f.mu.Lock()
	f.clients[clientID] = conn
	f.mu.Unlock()

	f.logger.Infow("event feed client connected", "client_id", clientID)

	events, cancel := f.sessionService.Subscribe()

	done := make(chan struct{})
	// Reader goroutine: we never expect inbound frames, but reading is how
	// close frames and pongs are processed.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(f.pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		f.mu.Lock()
		delete(f.clients, clientID)
		f.mu.Unlock()
		conn.Close()
		f.logger.Infow("event feed client disconnected", "client_id", clientID)
	}()

	// On connect, push the current snapshot so the shell does not have to
	// race the first state change.
	snapshot := map[string]interface{}{
		"type":    "session-snapshot",
		"payload": f.sessionService.Info(),
	}
	conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				f.logger.Debugw("event feed write failed", "client_id", clientID, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// ClientCount reports connected shell clients.
func (f *EventFeed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}
