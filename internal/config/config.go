package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

// Config is the static environment configuration, read once at load.
type Config struct {
	HTTPPort     string
	IsProduction bool

	BrokerHost string
	BrokerPort int
	BrokerTLS  bool

	TopicLed         string
	TopicTemperature string
	// TopicCommand is reserved: it is subscribed but no handler acts on it.
	TopicCommand string

	SimulationInterval time.Duration
	TempMin            float64
	TempMax            float64

	AdminEmail    string
	AdminUsername string
	AdminPassword string

	DataFile string

	CookieMaxAge   time.Duration
	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
}

// Load reads the configuration from the environment. Callers are expected to
// have loaded a .env file beforehand if one exists.
func Load() *Config {
	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"

	return &Config{
		HTTPPort:     util.GetEnv("PORT", "8080"),
		IsProduction: isProduction,

		BrokerHost: util.GetEnv("MQTT_HOST", "test.mosquitto.org"),
		BrokerPort: util.GetEnvInt("MQTT_PORT", 8081),
		BrokerTLS:  util.GetEnv("MQTT_TLS", "1") != "0",

		TopicLed:         util.GetEnv("MQTT_TOPIC_LED", "projet_TP_IOT_2025/led"),
		TopicTemperature: util.GetEnv("MQTT_TOPIC_TEMP", "projet_TP_IOT_2025/temperature"),
		TopicCommand:     util.GetEnv("MQTT_TOPIC_COMMAND", "projet_TP_IOT_2025/command"),

		SimulationInterval: util.GetEnvDuration("SIMULATION_INTERVAL", 5*time.Second),
		TempMin:            util.GetEnvFloat("TEMP_MIN", 15),
		TempMax:            util.GetEnvFloat("TEMP_MAX", 35),

		AdminEmail:    util.GetEnv("ADMIN_EMAIL", "admin@system.iot"),
		AdminUsername: util.GetEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: util.GetEnv("ADMIN_PASSWORD", "admin123"),

		DataFile: util.GetEnv("DATA_FILE", "data/dashboard.db"),

		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		StaticCacheAge: util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
	}
}

// BrokerURL is the websocket URL the MQTT client dials.
func (c *Config) BrokerURL() string {
	scheme := "ws"
	if c.BrokerTLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/mqtt", scheme, c.BrokerHost, c.BrokerPort)
}
