// Package hub fans live dashboard events (temperature readings, LED state,
// activity log lines, broker status) out to connected browsers.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

const writeWait = 5 * time.Second

// Event is the wire format pushed to browsers.
type Event struct {
	Type    string  `json:"type"`
	Value   float64 `json:"value,omitempty"`
	Status  string  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
	Time    string  `json:"time,omitempty"`
	On      bool    `json:"on,omitempty"`
}

const (
	EventTemperature = "temperature"
	EventLed         = "led"
	EventLog         = "log"
	EventMQTT        = "mqtt"
)

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// write sends one message guarded by the subscriber's mutex and a write
// deadline, so one slow browser cannot wedge the broadcast loop.
func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

func New() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// Add registers a connection and starts draining its reads so pings and
// closes are noticed. The hub owns the connection from here on.
func (h *Hub) Add(conn *websocket.Conn) {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()
	util.LogInfo("Dashboard subscriber connected (%d active)", count)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(sub)
				return
			}
		}
	}()
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		sub.conn.Close()
	}
	count := len(h.subscribers)
	h.mu.Unlock()
	util.LogInfo("Dashboard subscriber disconnected (%d active)", count)
}

// Broadcast sends an event to every subscriber, dropping the ones whose
// writes fail.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		util.LogWarn("Failed to marshal hub event: %v", err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.remove(sub)
		}
	}
}

// Count reports the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
