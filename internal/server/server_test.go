package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type staticStatus struct {
	status api.Status
}

func (s *staticStatus) Status() api.Status      { return s.status }
func (s *staticStatus) SetEnabled(enabled bool) { s.status.Enabled = enabled }

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/status", "/api/dispatches", "/api/events", "/"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 without backing component, got %d", path, rec.Code)
		}
	}
}

func TestServer_StatusAndDispatches(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	st.Dispatches().Create(&store.Dispatch{Code: "G4", Gesture: "One Finger", Outcome: "link_unavailable"})

	status := &staticStatus{status: api.Status{Strategy: "learned", Enabled: true}}
	ts := httptest.NewServer(New(Config{Store: st, Status: status, Logger: quietLogger()}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	var got api.Status
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Strategy != "learned" || !got.Enabled {
		t.Errorf("status = %+v", got)
	}

	resp, err = ts.Client().Get(ts.URL + "/api/dispatches?limit=5")
	if err != nil {
		t.Fatalf("GET /api/dispatches: %v", err)
	}
	var listed struct {
		Dispatches []store.Dispatch `json:"dispatches"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Dispatches) != 1 || listed.Dispatches[0].Outcome != "link_unavailable" {
		t.Errorf("dispatches = %+v", listed.Dispatches)
	}
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *EventHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventHub_Broadcast(t *testing.T) {
	hub := NewEventHub(quietLogger())
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	a := dialEvents(t, ts)
	b := dialEvents(t, ts)
	waitClients(t, hub, 2)

	if err := hub.Broadcast(map[string]string{"code": "G6", "outcome": "sent"}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev map[string]string
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if ev["code"] != "G6" {
			t.Errorf("event = %v", ev)
		}
	}

	a.Close()
	waitClients(t, hub, 1)
}

func TestEventHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewEventHub(quietLogger())
	if err := hub.Broadcast(struct{ Code string }{"G1"}); err != nil {
		t.Errorf("Broadcast() error = %v", err)
	}
	if err := hub.Broadcast(make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestEventHub_Close(t *testing.T) {
	hub := NewEventHub(quietLogger())
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	conn := dialEvents(t, ts)
	waitClients(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want normal closure", err)
	}
}

func TestServer_Run(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(Config{Logger: quietLogger()}).Run(ctx, addr)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/api/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
