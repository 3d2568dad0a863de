// coursedb-mcp serves the course database over MCP stdio. It is a drop-in
// stand-in for postgres-mcp for the three tools the chatbot uses, with the
// read-only guard built in.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/joshslysz/phyl-chatbot/internal/data/postgres"
	"github.com/joshslysz/phyl-chatbot/internal/logger"
	"github.com/joshslysz/phyl-chatbot/internal/mcp/server"
	"github.com/joshslysz/phyl-chatbot/internal/mcp/server/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	databaseURIEnvVar = "DATABASE_URI"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	metricsAddrFlag := flag.String("metrics-addr", "", "Address to listen on for prometheus metrics (empty to disable)")
	maxQueryRowsFlag := flag.Int("max-query-rows", 0, "Maximum rows returned per query (0 for default)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

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
		log.Info("coursedb-mcp: received signal", "signal", sig.String())
		cancel()
	}()

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	store, err := postgres.New(ctx, postgres.Config{
		Logger:       log,
		DatabaseURI:  databaseURI,
		MaxQueryRows: *maxQueryRowsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	srv, err := server.New(server.Config{
		Logger:  log,
		Store:   store,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}
