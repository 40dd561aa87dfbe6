package config

import (
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.API.APIKey = expandEnvVars(cfg.API.APIKey)
	cfg.Wallet.Address = expandEnvVars(cfg.Wallet.Address)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only. A .env file in
// the working directory is honored before environment lookups.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if cfg.Chat.Endpoint == "" {
		cfg.Chat.Endpoint = def.Chat.Endpoint
	}
	if cfg.Feed.Endpoint == "" {
		cfg.Feed.Endpoint = def.Feed.Endpoint
	}
	if cfg.Feed.InitialBackoffMs == 0 {
		cfg.Feed.InitialBackoffMs = def.Feed.InitialBackoffMs
	}
	if cfg.Feed.MaxBackoffMs == 0 {
		cfg.Feed.MaxBackoffMs = def.Feed.MaxBackoffMs
	}
	if cfg.Feed.MaxAttempts == 0 {
		cfg.Feed.MaxAttempts = def.Feed.MaxAttempts
	}
	if cfg.Session.Identity == "" {
		cfg.Session.Identity = def.Session.Identity
	}
	if cfg.Session.LearningLevel == 0 {
		cfg.Session.LearningLevel = def.Session.LearningLevel
	}
	if cfg.Wallet.Network == "" {
		cfg.Wallet.Network = def.Wallet.Network
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
}

// applyEnvOverrides lets environment variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EAILI5_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("EAILI5_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("EAILI5_CHAT_ENDPOINT"); v != "" {
		cfg.Chat.Endpoint = v
	}
	if v := os.Getenv("EAILI5_FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("EAILI5_IDENTITY"); v != "" {
		cfg.Session.Identity = v
	}
	if v := os.Getenv("EAILI5_LEARNING_LEVEL"); v != "" {
		if lvl, err := strconv.Atoi(v); err == nil {
			cfg.Session.LearningLevel = lvl
		}
	}
	if v := os.Getenv("EAILI5_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
