package gateway

import (
	"sync"
	"testing"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/config"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingSink) AddLog(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, message)
}

func (r *recordingSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func testConfig() *config.Config {
	return &config.Config{
		BrokerHost:       "test.mosquitto.org",
		BrokerPort:       8081,
		BrokerTLS:        true,
		TopicLed:         "test/led",
		TopicTemperature: "test/temperature",
		TopicCommand:     "test/command",
	}
}

func TestPublishWhileDisconnectedStillLogs(t *testing.T) {
	sink := &recordingSink{}
	g := New(testConfig(), sink)

	g.Publish("test/led", "ON")

	if g.IsConnected() {
		t.Error("Expected gateway without Connect to report disconnected")
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0] != "[test/led] ON" {
		t.Errorf("Expected dropped publish to be logged, got %v", entries)
	}
}

func TestRouteTemperature(t *testing.T) {
	sink := &recordingSink{}
	g := New(testConfig(), sink)

	var readings []float64
	g.SetReadingHandler(func(v float64) { readings = append(readings, v) })

	g.route("test/temperature", "23.4")

	if len(readings) != 1 || readings[0] != 23.4 {
		t.Errorf("Expected one reading of 23.4, got %v", readings)
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0] != "[test/temperature] 23.4" {
		t.Errorf("Expected payload to be logged, got %v", entries)
	}
}

func TestRouteNonNumericTemperatureIgnored(t *testing.T) {
	sink := &recordingSink{}
	g := New(testConfig(), sink)

	fired := false
	g.SetReadingHandler(func(float64) { fired = true })

	g.route("test/temperature", "hot")

	if fired {
		t.Error("Expected non-numeric payload to be dropped")
	}
	if len(sink.all()) != 1 {
		t.Error("Expected payload to still be logged")
	}
}

func TestRouteCommandTopicIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	g := New(testConfig(), sink)

	fired := false
	g.SetReadingHandler(func(float64) { fired = true })

	g.route("test/command", "reboot")

	if fired {
		t.Error("Expected command payloads to never reach the reading handler")
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0] != "[test/command] reboot" {
		t.Errorf("Expected command payload to be logged, got %v", entries)
	}
}

func TestRouteWithoutHandlerDoesNotPanic(t *testing.T) {
	g := New(testConfig(), &recordingSink{})
	g.route("test/temperature", "21.0")
}

func TestConcurrentConnectAndPublish(t *testing.T) {
	cfg := testConfig()
	// Unroutable local endpoint: dial attempts fail fast without a broker.
	cfg.BrokerHost = "127.0.0.1"
	cfg.BrokerPort = 1
	cfg.BrokerTLS = false
	g := New(cfg, &recordingSink{})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			g.Connect()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			g.Publish("test/led", "ON")
			g.IsConnected()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			g.SetReadingHandler(func(float64) {})
			g.route("test/temperature", "21.0")
		}
	}()
	wg.Wait()

	g.Disconnect()
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := cfg.BrokerURL(); got != "wss://test.mosquitto.org:8081/mqtt" {
		t.Errorf("Unexpected broker URL %q", got)
	}
	cfg.BrokerTLS = false
	if got := cfg.BrokerURL(); got != "ws://test.mosquitto.org:8081/mqtt" {
		t.Errorf("Unexpected broker URL %q", got)
	}
}
