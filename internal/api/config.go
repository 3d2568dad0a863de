package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshslysz/phyl-chatbot/internal/agent"
)

const (
	defaultAskTimeout        = 120 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// Responder answers one student question.
type Responder interface {
	Respond(ctx context.Context, question string) (*agent.RunResult, error)
}

// HealthReporter reports whether the data-access process is alive.
type HealthReporter interface {
	Healthy() bool
}

// KeyStatus reports which required settings were loaded, without exposing
// their values.
type KeyStatus struct {
	ClaudeAPIKeyLoaded bool `json:"claude_api_key_loaded"`
	DatabaseURILoaded  bool `json:"database_uri_loaded"`
}

type Config struct {
	Logger    *slog.Logger
	Responder Responder
	Health    HealthReporter
	Keys      KeyStatus

	ListenAddr     string
	AllowedOrigins []string
	Version        string

	// AskTimeout bounds one whole question, tool calls included.
	AskTimeout        time.Duration
	ReadHeaderTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Responder == nil {
		return fmt.Errorf("responder is required")
	}
	if c.Health == nil {
		return fmt.Errorf("health reporter is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}

	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.AskTimeout == 0 {
		c.AskTimeout = defaultAskTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}

	return nil
}
