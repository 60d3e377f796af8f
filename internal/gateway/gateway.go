// Package gateway wraps the MQTT client. The rest of the application talks to
// it through Connect, Publish and the reading handler; broker failures are
// logged and degrade publishing to a no-op, they never take the panel down.
package gateway

import (
	"strconv"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/config"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

// Publisher is the outbound contract the simulator and router depend on.
type Publisher interface {
	Publish(topic, payload string)
}

// LogSink receives one activity line per gateway event. Satisfied by the
// store.
type LogSink interface {
	AddLog(message string)
}

// Gateway is safe for concurrent use: Connect runs on login while the
// simulator publishes from its ticker goroutine.
type Gateway struct {
	cfg  *config.Config
	logs LogSink

	mu        sync.Mutex
	client    mqtt.Client
	onReading func(float64)
	onStatus  func(connected bool)
}

func New(cfg *config.Config, logs LogSink) *Gateway {
	return &Gateway{cfg: cfg, logs: logs}
}

// SetReadingHandler registers the callback invoked with each temperature
// payload arriving on the subscribed topic.
func (g *Gateway) SetReadingHandler(fn func(float64)) {
	g.mu.Lock()
	g.onReading = fn
	g.mu.Unlock()
}

// SetStatusHandler registers the callback invoked on connect/disconnect.
func (g *Gateway) SetStatusHandler(fn func(connected bool)) {
	g.mu.Lock()
	g.onStatus = fn
	g.mu.Unlock()
}

// Connect dials the broker asynchronously. Success and failure are reported
// through the paho handlers and the activity log; the call itself never
// blocks the caller on the network.
func (g *Gateway) Connect() {
	g.mu.Lock()
	if g.client != nil && g.client.IsConnected() {
		g.mu.Unlock()
		return
	}

	clientID := "web_" + uuid.NewString()[:8]
	opts := mqtt.NewClientOptions().
		AddBroker(g.cfg.BrokerURL()).
		SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(g.handleConnect)
	opts.SetConnectionLostHandler(g.handleConnectionLost)

	client := mqtt.NewClient(opts)
	g.client = client
	g.mu.Unlock()

	util.LogInfo("Connecting to MQTT broker %s as %s", g.cfg.BrokerURL(), clientID)
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			util.LogWarn("MQTT connection failed: %v", err)
			g.logs.AddLog("Erreur connexion: " + err.Error())
		}
	}()
}

func (g *Gateway) handleConnect(client mqtt.Client) {
	util.LogInfo("Connected to MQTT broker")
	g.logs.AddLog("Connecté au broker MQTT")
	g.notifyStatus(true)

	if token := client.Subscribe(g.cfg.TopicTemperature, 0, g.handleMessage); token.Wait() && token.Error() != nil {
		util.LogWarn("Subscribe %s failed: %v", g.cfg.TopicTemperature, token.Error())
	}
	// Reserved command channel, subscribed but not acted upon.
	if token := client.Subscribe(g.cfg.TopicCommand, 0, g.handleMessage); token.Wait() && token.Error() != nil {
		util.LogWarn("Subscribe %s failed: %v", g.cfg.TopicCommand, token.Error())
	}
}

func (g *Gateway) handleConnectionLost(_ mqtt.Client, err error) {
	util.LogWarn("MQTT connection lost: %v", err)
	g.logs.AddLog("Connexion MQTT perdue")
	g.notifyStatus(false)
}

func (g *Gateway) notifyStatus(connected bool) {
	g.mu.Lock()
	fn := g.onStatus
	g.mu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

func (g *Gateway) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	g.route(msg.Topic(), string(msg.Payload()))
}

// route dispatches an inbound payload. Split from handleMessage so the
// dispatch logic is testable without a broker.
func (g *Gateway) route(topic, payload string) {
	g.logs.AddLog("[" + topic + "] " + payload)
	if topic != g.cfg.TopicTemperature {
		return
	}
	value, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		util.LogWarn("Ignoring non-numeric temperature payload %q", payload)
		return
	}
	g.mu.Lock()
	fn := g.onReading
	g.mu.Unlock()
	if fn != nil {
		fn(value)
	}
}

func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	return client != nil && client.IsConnected()
}

// Publish sends a payload on a topic, best effort: when disconnected the
// message is dropped but the attempt is still recorded in the activity log.
func (g *Gateway) Publish(topic, payload string) {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Publish(topic, 0, false, payload)
	}
	g.logs.AddLog("[" + topic + "] " + payload)
}

// Disconnect closes the broker connection, waiting briefly for in-flight
// messages.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}
