package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Chat: ChatConfig{
			Endpoint: "ws://localhost:8000/ws/chat",
		},
		Feed: FeedConfig{
			Endpoint:         "ws://localhost:8000/ws/tokens",
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
			MaxAttempts:      5,
		},
		Session: SessionConfig{
			Identity:      "anonymous",
			LearningLevel: 2,
		},
		Wallet: WalletConfig{
			Network: "solana",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}

// Timeout returns the REST request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the first reconnect delay.
func (c FeedConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the reconnect delay cap.
func (c FeedConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}
