package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.API.BaseURL != "" && !strings.HasPrefix(cfg.API.BaseURL, "http://") && !strings.HasPrefix(cfg.API.BaseURL, "https://") {
		issues = append(issues, ValidationIssue{
			Path:    "api.baseUrl",
			Message: fmt.Sprintf("must start with http:// or https://, got %q", cfg.API.BaseURL),
		})
	}
	if cfg.API.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "api.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.API.TimeoutSeconds),
		})
	}

	for path, endpoint := range map[string]string{
		"chat.endpoint": cfg.Chat.Endpoint,
		"feed.endpoint": cfg.Feed.Endpoint,
	} {
		if endpoint != "" && !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://") {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must start with ws:// or wss://, got %q", endpoint),
			})
		}
	}

	if cfg.Feed.InitialBackoffMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "feed.initialBackoffMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Feed.InitialBackoffMs),
		})
	}
	if cfg.Feed.MaxBackoffMs != 0 && cfg.Feed.MaxBackoffMs < cfg.Feed.InitialBackoffMs {
		issues = append(issues, ValidationIssue{
			Path:    "feed.maxBackoffMs",
			Message: fmt.Sprintf("must be >= initialBackoffMs (%d), got %d", cfg.Feed.InitialBackoffMs, cfg.Feed.MaxBackoffMs),
		})
	}
	if cfg.Feed.MaxAttempts < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "feed.maxAttempts",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Feed.MaxAttempts),
		})
	}

	if cfg.Session.LearningLevel != 0 && (cfg.Session.LearningLevel < 1 || cfg.Session.LearningLevel > 5) {
		issues = append(issues, ValidationIssue{
			Path:    "session.learningLevel",
			Message: fmt.Sprintf("must be 1-5, got %d", cfg.Session.LearningLevel),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	return issues
}
