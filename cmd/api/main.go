package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "net/http/pprof"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/joshslysz/phyl-chatbot/internal/agent"
	"github.com/joshslysz/phyl-chatbot/internal/api"
	apimetrics "github.com/joshslysz/phyl-chatbot/internal/api/metrics"
	"github.com/joshslysz/phyl-chatbot/internal/logger"
	"github.com/joshslysz/phyl-chatbot/internal/mcp/executor"
	"github.com/joshslysz/phyl-chatbot/internal/mcp/manager"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr      = "0.0.0.0:8000"
	defaultMetricsAddr     = "0.0.0.0:0"
	defaultModel           = string(anthropic.ModelClaudeSonnet4_5)
	defaultMaxOutputTokens = 2048
	defaultMCPCommand      = "postgres-mcp"

	apiKeyEnvVar         = "ANTHROPIC_API_KEY"
	fallbackAPIKeyEnvVar = "CLAUDE_API_KEY"
	databaseURIEnvVar    = "DATABASE_URI"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	enablePprofFlag := flag.Bool("enable-pprof", false, "enable pprof server")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", nil, "CORS allowed origins (default: all)")

	modelFlag := flag.String("model", defaultModel, "Anthropic model to answer with")
	maxOutputTokensFlag := flag.Int64("max-output-tokens", defaultMaxOutputTokens, "Maximum output tokens per model turn")
	maxRoundsFlag := flag.Int("max-rounds", 0, "Maximum model turns per question (0 for default)")

	mcpCommandFlag := flag.String("mcp-command", defaultMCPCommand, "Data-access MCP server command")
	mcpArgsFlag := flag.StringSlice("mcp-args", []string{"--access-mode", "restricted", "--transport", "stdio"}, "Data-access MCP server arguments")

	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	apiKey := os.Getenv(apiKeyEnvVar)
	if apiKey == "" {
		apiKey = os.Getenv(fallbackAPIKeyEnvVar)
	}
	if apiKey == "" {
		return fmt.Errorf("%s (or %s) environment variable is required", apiKeyEnvVar, fallbackAPIKeyEnvVar)
	}

	databaseURI := os.Getenv(databaseURIEnvVar)
	if databaseURI == "" {
		return fmt.Errorf("%s environment variable is required", databaseURIEnvVar)
	}

	log := logger.New(*verboseFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("api: received signal", "signal", sig.String())
		cancel()
	}()

	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			err := http.ListenAndServe("localhost:6060", nil)
			if err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		apimetrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	mcpEnv := []string{databaseURIEnvVar + "=" + databaseURI}

	mgr, err := manager.New(manager.Config{
		Logger:  log,
		Command: *mcpCommandFlag,
		Args:    *mcpArgsFlag,
		Env:     mcpEnv,
	})
	if err != nil {
		return fmt.Errorf("failed to create data-access manager: %w", err)
	}
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start data-access process: %w", err)
	}
	defer func() {
		if err := mgr.Stop(); err != nil {
			log.Error("failed to stop data-access process", "error", err)
		}
	}()

	toolExec, err := executor.New(executor.Config{
		Logger:  log,
		Command: *mcpCommandFlag,
		Args:    *mcpArgsFlag,
		Env:     mcpEnv,
	})
	if err != nil {
		return fmt.Errorf("failed to create tool executor: %w", err)
	}

	anthropicClient := anthropic.NewClient(option.WithAPIKey(apiKey))
	llm := agent.NewAnthropicClient(anthropicClient, anthropic.Model(*modelFlag), *maxOutputTokensFlag, agent.SystemPrompt)

	responder, err := agent.New(&agent.Config{
		Logger:    log,
		LLM:       llm,
		Tools:     toolExec,
		Catalog:   agent.Catalog(),
		MaxRounds: *maxRoundsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	server, err := api.New(api.Config{
		Logger:    log,
		Responder: responder,
		Health:    mgr,
		Keys: api.KeyStatus{
			ClaudeAPIKeyLoaded: apiKey != "",
			DatabaseURILoaded:  databaseURI != "",
		},
		ListenAddr:     *listenAddrFlag,
		AllowedOrigins: *allowedOriginsFlag,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("api: starting",
		"version", version,
		"model", *modelFlag,
		"mcpCommand", *mcpCommandFlag,
		"databaseURI", redactDatabaseURI(databaseURI),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Run(ctx); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("api: shutting down", "reason", ctx.Err())
		// Give the server a moment to drain before deferred cleanup.
		time.Sleep(100 * time.Millisecond)
		return nil
	case err := <-serverErrCh:
		log.Error("api: server error causing shutdown", "error", err)
		return err
	case err := <-metricsServerErrCh:
		log.Error("api: metrics server error causing shutdown", "error", err)
		return err
	}
}

// redactDatabaseURI redacts the password from a database URI for logging
func redactDatabaseURI(uri string) string {
	if strings.Contains(uri, "@") {
		parts := strings.Split(uri, "@")
		if len(parts) == 2 {
			authPart := parts[0]
			if strings.Contains(authPart, ":") {
				authParts := strings.SplitN(authPart, ":", 3) // postgres://, user, password
				if len(authParts) >= 3 {
					authParts[2] = "REDACTED"
					return strings.Join(authParts, ":") + "@" + parts[1]
				}
			}
		}
	}
	return uri
}
