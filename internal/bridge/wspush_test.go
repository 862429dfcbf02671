package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaakkos/titandash/internal/dispatch"
)

// pushServer accepts WebSocket connections after failing the first `fail`
// attempts, and sends messages on each accepted connection.
func pushServer(t *testing.T, fail int32, messages ...string) (*httptest.Server, *int32) {
	t.Helper()
	var attempts int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= fail {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("X-Token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &attempts
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPushListenerDeliversEvents(t *testing.T) {
	srv, _ := pushServer(t, 0,
		`not json`,
		`{"method": "notifications/message", "params": {}}`,
		`{"method": "base_instance_stopped", "params": {"args": [2]}}`,
	)

	events := make(chan dispatch.Event, 4)
	l := NewPushListener(wsURL(srv), map[string]string{"X-Token": "secret"}, func(ev dispatch.Event) { events <- ev }, discard)
	l.Start()
	defer l.Stop()

	select {
	case ev := <-events:
		if ev.Kind != dispatch.KindInstanceStopped || ev.InstanceID != "2" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered")
	}
	if st := l.Status(); !st.Connected || st.LastSeen.IsZero() {
		t.Errorf("Status() = %+v, want connected", st)
	}
}

func TestPushListenerReconnects(t *testing.T) {
	srv, attempts := pushServer(t, 2, `{"method": "toast", "params": {"message": "back"}}`)

	events := make(chan dispatch.Event, 4)
	l := NewPushListener(wsURL(srv), map[string]string{"X-Token": "secret"}, func(ev dispatch.Event) { events <- ev }, discard,
		WithReconnectDelays(10*time.Millisecond, 40*time.Millisecond))
	l.Start()
	defer l.Stop()

	select {
	case ev := <-events:
		if ev.Kind != dispatch.KindToast {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event after reconnect")
	}
	if n := atomic.LoadInt32(attempts); n < 3 {
		t.Errorf("attempts = %d, want at least 3", n)
	}
}

func TestPushListenerStopWithoutServer(t *testing.T) {
	l := NewPushListener("ws://127.0.0.1:1/events", nil, func(dispatch.Event) {}, discard,
		WithReconnectDelays(time.Hour, time.Hour))
	l.Start()
	time.Sleep(20 * time.Millisecond)
	l.Stop()
	l.Stop()
	if st := l.Status(); st.Connected {
		t.Errorf("Status() = %+v after Stop", st)
	}
}
