// Package config provides configuration types and loading for the console.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Alphonse, Server, Stream, Events, Notify.
type Config struct {
	Alphonse AlphonseConfig `json:"alphonse"`
	Server   ServerConfig   `json:"server"`
	Stream   StreamConfig   `json:"stream"`
	Events   EventsConfig   `json:"events"`
	Notify   NotifyConfig   `json:"notify"`
}

// AlphonseConfig groups upstream Agent API settings.
type AlphonseConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"API_BASE_URL"`
	// APIToken is sent as x-alphonse-api-token when non-empty.
	APIToken string `json:"apiToken" envconfig:"API_TOKEN"`
	// MessageTimeoutSeconds accepts a number of seconds or the literal
	// "none" to disable the send timeout. Blank, zero or negative values
	// fall back to the process default (5s).
	MessageTimeoutSeconds string `json:"messageTimeoutSeconds" envconfig:"API_MESSAGE_TIMEOUT_SECONDS"`
	UserName              string `json:"userName" envconfig:"UI_USER_NAME"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
}

// StreamConfig contains SSE cadence settings.
type StreamConfig struct {
	PresenceInterval  time.Duration `json:"presenceInterval" envconfig:"PRESENCE_INTERVAL"`
	ChatChunkInterval time.Duration `json:"chatChunkInterval" envconfig:"CHAT_CHUNK_INTERVAL"`
}

// EventsConfig contains Kafka UI-event export settings.
// Export is disabled when Brokers is blank.
type EventsConfig struct {
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// NotifyConfig contains Slack alerting settings.
// Alerting is disabled when Token or Channel is blank.
type NotifyConfig struct {
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// DefaultMessageTimeout is applied when no send timeout is configured.
const DefaultMessageTimeout = 5 * time.Second

// MessageTimeout resolves the configured send timeout. A zero return
// means the timeout is disabled.
func (a AlphonseConfig) MessageTimeout() time.Duration {
	return resolveMessageTimeout(a.MessageTimeoutSeconds)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Alphonse: AlphonseConfig{
			BaseURL: "http://localhost:8001",
		},
		Server: ServerConfig{
			Host: "127.0.0.1", // Secure default
			Port: 5001,
		},
		Stream: StreamConfig{
			PresenceInterval:  10 * time.Second,
			ChatChunkInterval: 350 * time.Millisecond,
		},
		Events: EventsConfig{
			Topic: "console.ui.events",
		},
	}
}
