// Package realtime fans alert notifications out to connected websocket
// sessions. Each API instance runs one Hub; instances share deliveries
// through Redis pub/sub, so a notification published anywhere reaches
// sessions everywhere.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"shoppersprint-alerts/internal/cache"
	"shoppersprint-alerts/internal/logger"
	"shoppersprint-alerts/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 10

	alertsChannel = "price_alerts"
)

var (
	sessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_sessions",
		Help: "Currently connected websocket sessions",
	})
	framesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "websocket_frames_dropped_total",
		Help: "Frames dropped because a session's send buffer was full",
	})
)

func init() {
	prometheus.MustRegister(sessionsGauge, framesDroppedTotal)
}

// alertFrame is the websocket framing around one notification.
type alertFrame struct {
	Type string                   `json:"type"`
	Data models.AlertNotification `json:"data"`
}

type session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks this instance's websocket sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	upgrader websocket.Upgrader
}

// NewHub constructs an empty hub. When ALLOWED_ORIGINS is set (comma
// separated), upgrade requests from other origins are refused; unset
// means any origin, which matches the open CORS posture of the rest of
// the API.
func NewHub() *Hub {
	var origins []string
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origins = append(origins, strings.TrimSpace(origin))
		}
	}

	return &Hub{
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range origins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeWS upgrades the request and runs the session until either side
// drops. The first frame a client sees is the connected frame carrying
// its session ID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	total := len(h.sessions)
	sessionsGauge.Set(float64(total))
	h.mu.Unlock()

	logger.Log.Info("Websocket session connected",
		zap.String("session_id", s.id),
		zap.Int("total_sessions", total),
	)

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{
		"type":       "connected",
		"session_id": s.id,
	}); err != nil {
		logger.Log.Warn("Failed to send connected frame", zap.Error(err))
		h.unregister(s)
		return
	}

	go h.writePump(s)
	go h.readPump(s)
}

// Broadcast queues a frame for every connected session. Sessions whose
// send buffer is full miss the frame rather than stall the rest.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		select {
		case s.send <- payload:
		default:
			framesDroppedTotal.Inc()
			logger.Log.Warn("Dropping frame for slow websocket session",
				zap.String("session_id", s.id))
		}
	}
}

// SendTo queues a frame for a single session. It reports false when the
// session is unknown or its buffer is full.
func (h *Hub) SendTo(sessionID string, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		framesDroppedTotal.Inc()
		return false
	}
}

// Count returns the number of sessions connected to this instance.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RunRelay subscribes to the notification channel and forwards each
// notification to this instance's sessions. It returns when ctx is
// canceled.
func (h *Hub) RunRelay(ctx context.Context) {
	subscriber, err := cache.NewRedisSubscriber(alertsChannel)
	if err != nil {
		logger.Log.Error("Failed to subscribe to alert channel", zap.Error(err))
		return
	}
	defer subscriber.Close()

	logger.Log.Info("Relaying alert notifications to websocket sessions")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		receiveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := subscriber.ReceiveMessage(receiveCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				logger.Log.Error("Error receiving from alert channel", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}

		var notification models.AlertNotification
		if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
			logger.Log.Error("Discarding malformed alert payload", zap.Error(err))
			continue
		}

		frame, err := json.Marshal(alertFrame{Type: "alert", Data: notification})
		if err != nil {
			logger.Log.Error("Failed to encode alert frame", zap.Error(err))
			continue
		}

		logger.Log.Info("Relaying alert notification",
			zap.String("alert_id", notification.AlertID),
			zap.String("product_id", notification.ProductID),
		)

		h.Broadcast(frame)
	}
}

// unregister removes the session and closes its channel. The send channel
// is only closed after the session leaves the map, so broadcasts holding
// the read lock can never hit a closed channel.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, present := h.sessions[s.id]
	if present {
		delete(h.sessions, s.id)
		sessionsGauge.Set(float64(len(h.sessions)))
	}
	total := len(h.sessions)
	h.mu.Unlock()

	if !present {
		return
	}

	s.conn.Close()
	close(s.send)

	logger.Log.Info("Websocket session disconnected",
		zap.String("session_id", s.id),
		zap.Int("total_sessions", total),
	)
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(s)
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Log.Warn("Websocket write failed, dropping session",
					zap.String("session_id", s.id),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(s *session) {
	defer h.unregister(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients have nothing to say; the read loop only services control
	// frames and notices the close.
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Log.Warn("Websocket session closed unexpectedly",
					zap.String("session_id", s.id),
					zap.Error(err),
				)
			}
			return
		}
	}
}
