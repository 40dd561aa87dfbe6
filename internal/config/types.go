package config

// Config is the root configuration for the eaili5 client.
type Config struct {
	API     APIConfig     `yaml:"api,omitempty"`
	Chat    ChatConfig    `yaml:"chat,omitempty"`
	Feed    FeedConfig    `yaml:"feed,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Wallet  WalletConfig  `yaml:"wallet,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// APIConfig points at the EAILI5 backend REST surface.
type APIConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`        // e.g. http://localhost:8000
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"` // per-request timeout
	APIKey         string `yaml:"apiKey,omitempty"`         // optional bearer token, supports ${ENV_VAR}
}

// ChatConfig configures the streaming chat channel.
type ChatConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"` // e.g. ws://localhost:8000/ws/chat
}

// FeedConfig configures the real-time token price channel.
type FeedConfig struct {
	Endpoint         string `yaml:"endpoint,omitempty"`         // e.g. ws://localhost:8000/ws/tokens
	InitialBackoffMs int    `yaml:"initialBackoffMs,omitempty"` // first reconnect delay
	MaxBackoffMs     int    `yaml:"maxBackoffMs,omitempty"`     // reconnect delay cap
	MaxAttempts      int    `yaml:"maxAttempts,omitempty"`      // consecutive failures before giving up
}

// SessionConfig controls session negotiation.
type SessionConfig struct {
	Identity      string `yaml:"identity,omitempty"`      // wallet address or "anonymous"
	LearningLevel int    `yaml:"learningLevel,omitempty"` // 1 (newcomer) .. 5 (degen)
}

// WalletConfig holds the default wallet used by wallet commands.
type WalletConfig struct {
	Address string `yaml:"address,omitempty"`
	Network string `yaml:"network,omitempty"` // e.g. "solana"
}

// StoreConfig configures local persistence.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite database path; ":memory:" for ephemeral
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
	File  string `yaml:"file,omitempty"`
}
