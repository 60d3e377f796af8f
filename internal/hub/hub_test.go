package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestClient(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Add(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForCount(t *testing.T, h *Hub, expected int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Count() == expected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected %d subscribers, got %d", expected, h.Count())
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	h := New()
	client := dialTestClient(t, h)
	waitForCount(t, h, 1)

	h.Broadcast(Event{Type: EventTemperature, Value: 22.5, Status: "🔵 Normal"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if ev.Type != EventTemperature || ev.Value != 22.5 || ev.Status != "🔵 Normal" {
		t.Errorf("Unexpected event %+v", ev)
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := New()
	first := dialTestClient(t, h)
	second := dialTestClient(t, h)
	waitForCount(t, h, 2)

	h.Broadcast(Event{Type: EventLog, Message: "hello", Time: "12:00:00"})

	for _, client := range []*websocket.Conn{first, second} {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if ev.Message != "hello" {
			t.Errorf("Unexpected event %+v", ev)
		}
	}
}

func TestClosedSubscriberIsPruned(t *testing.T) {
	h := New()
	client := dialTestClient(t, h)
	waitForCount(t, h, 1)

	client.Close()
	waitForCount(t, h, 0)

	// must not panic with nobody listening
	h.Broadcast(Event{Type: EventLed, On: true})
}
