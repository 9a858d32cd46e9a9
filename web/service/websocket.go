package service

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// Event names pushed to dashboard clients.
const (
	EventConnected         = "connected"
	EventStatusUpdate      = "status_update"
	EventDataUpdate        = "data_update"
	EventNewAnomaly        = "new_anomaly"
	EventSystemLog         = "system_log"
	EventAcquisitionStatus = "acquisition_status"
	EventDeviceStatus      = "device_status"
	EventSyncReport        = "sync_report"
)

// Event is the envelope every websocket message uses.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// WebSocketService fans dashboard events out to connected browsers.
type WebSocketService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	running    bool
}

func NewWebSocketService() *WebSocketService {
	return &WebSocketService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Upgrade turns an HTTP request into a websocket client of this hub.
func (s *WebSocketService) Upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	s.RegisterClient(conn)

	// Drain the read side so close frames and pings are handled.
	go func() {
		defer s.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Run pumps hub events until Stop is called.
func (s *WebSocketService) Run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.clients[conn] = true
			total := len(s.clients)
			s.mu.Unlock()
			logger.Debugf("WebSocket client connected (total: %d)", total)

			s.sendToClient(conn, Event{
				Type:      EventConnected,
				Timestamp: time.Now(),
				Data:      map[string]any{"message": "Connected to real-time updates"},
			})

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				conn.Close()
				logger.Debugf("WebSocket client disconnected (total: %d)", len(s.clients))
			}
			s.mu.Unlock()

		case message := <-s.broadcast:
			s.mu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.mu.RUnlock()

			for _, conn := range clients {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					logger.Debug("WebSocket write error:", err)
					select {
					case s.unregister <- conn:
					default:
					}
				}
			}

		case <-s.done:
			return
		}
	}
}

func (s *WebSocketService) sendToClient(conn *websocket.Conn, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		logger.Warning("Failed to marshal WebSocket message:", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
		logger.Debug("WebSocket write error:", err)
		select {
		case s.unregister <- conn:
		default:
		}
	}
}

// Broadcast queues an event for every connected client. Messages are
// dropped rather than blocking the producers when the hub backs up.
func (s *WebSocketService) Broadcast(eventType string, data any) {
	message, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		logger.Warning("Failed to marshal WebSocket message:", err)
		return
	}
	select {
	case s.broadcast <- message:
	default:
		logger.Warning("WebSocket broadcast channel full, dropping message")
	}
}

func (s *WebSocketService) RegisterClient(conn *websocket.Conn) {
	select {
	case s.register <- conn:
	default:
		logger.Warning("WebSocket register channel full")
	}
}

func (s *WebSocketService) UnregisterClient(conn *websocket.Conn) {
	select {
	case s.unregister <- conn:
	default:
	}
}

func (s *WebSocketService) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WebSocketService) SendStatusUpdate(status any) {
	s.Broadcast(EventStatusUpdate, status)
}

func (s *WebSocketService) SendDataUpdate(signal string, chart ChartPayload) {
	s.Broadcast(EventDataUpdate, map[string]any{
		"signal": signal,
		"data":   chart,
	})
}

func (s *WebSocketService) SendAnomaly(a Anomaly) {
	s.Broadcast(EventNewAnomaly, a)
}

func (s *WebSocketService) SendSystemLog(entry string) {
	s.Broadcast(EventSystemLog, map[string]any{"message": entry})
}

func (s *WebSocketService) SendAcquisitionStatus(acquiring bool) {
	s.Broadcast(EventAcquisitionStatus, map[string]any{"acquiring": acquiring})
}

func (s *WebSocketService) SendDeviceStatus(connected bool) {
	s.Broadcast(EventDeviceStatus, map[string]any{"connected": connected})
}

func (s *WebSocketService) SendSyncReport(session *dbsync.Session) {
	s.Broadcast(EventSyncReport, session)
}

// Stop disconnects every client and terminates Run.
func (s *WebSocketService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}
