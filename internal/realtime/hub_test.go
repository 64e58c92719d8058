package realtime

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"shoppersprint-alerts/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// dial connects to the hub, consumes the connected frame, and returns the
// connection together with the session ID the hub assigned.
func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		conn.Close()
		t.Fatalf("read connected frame: %v", err)
	}
	if frame.Type != "connected" || frame.SessionID == "" {
		conn.Close()
		t.Fatalf("unexpected connected frame: %+v", frame)
	}

	return conn, frame.SessionID
}

func waitForSessions(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session count never reached %d, have %d", want, hub.Count())
}

func TestServeWSRegistersSession(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, sessionID := dial(t, srv)
	defer conn.Close()

	if hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", hub.Count())
	}
	if sessionID == "" {
		t.Error("session ID missing from connected frame")
	}
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	first, _ := dial(t, srv)
	defer first.Close()
	second, _ := dial(t, srv)
	defer second.Close()

	hub.Broadcast([]byte(`{"type":"alert","data":{"alert_id":"alert-1"}}`))

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("session %d read: %v", i, err)
		}
		if !strings.Contains(string(payload), "alert-1") {
			t.Errorf("session %d got %s, want an alert-1 frame", i, payload)
		}
	}
}

func TestSendToTargetsOneSession(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	target, targetID := dial(t, srv)
	defer target.Close()
	bystander, _ := dial(t, srv)
	defer bystander.Close()

	if !hub.SendTo(targetID, []byte(`{"type":"alert"}`)) {
		t.Fatal("SendTo returned false for a connected session")
	}

	target.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := target.ReadMessage(); err != nil {
		t.Fatalf("target read: %v", err)
	}

	bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bystander.ReadMessage(); err == nil {
		t.Error("bystander received a targeted frame")
	}
}

func TestSendToUnknownSession(t *testing.T) {
	hub := NewHub()

	if hub.SendTo("no-such-session", []byte(`{}`)) {
		t.Error("SendTo returned true for an unknown session")
	}
}

func TestSessionUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _ := dial(t, srv)
	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}

	conn.Close()
	waitForSessions(t, hub, 0)
}
