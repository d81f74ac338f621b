package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so that every defer (like the database
// close) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	// A failure here is the only class of error allowed to kill the process.
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core components
	monitoring := observability.NewMonitoringManager(logger)
	hub := runtime.NewHub(logger, monitoring, config.WelcomeMessage)
	store := repositories.NewMessageRepository(db, logger, config.MaxMessages)
	service := services.NewChatService(logger, store, hub, monitoring)

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised workers
	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewReporterWorker(logger, monitoring, config.ReportInterval))
	go sup.Run(ctx)

	// 6. The two listening surfaces: hub and query API.
	timeouts := ws.Timeouts{
		Write:        config.WriteTimeout,
		Pong:         config.PongTimeout,
		PingInterval: config.PingInterval,
	}
	wsHandler := ws.NewHandler(logger, hub, service, config.CorsOrigin, config.SendBufferSize, config.MaxFrameBytes, timeouts)
	api := httpapi.New(logger, service, monitoring, config.FetchLimit, config.CorsOrigin)

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", wsHandler)
	wsServer := &http.Server{Addr: config.WsAddr, Handler: wsMux}
	apiServer := &http.Server{Addr: config.ApiAddr, Handler: api.Router()}

	// Error channel shared by both servers.
	errChan := make(chan error, 2)
	go serve(logger, "websocket hub", wsServer, errChan)
	go serve(logger, "query API", apiServer, errChan)

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or a server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = wsServer.Shutdown(shutdownCtx)
	_ = apiServer.Shutdown(shutdownCtx)
	sup.Stop()
	logger.Info("Relay stopped cleanly")

	return exitOK, nil
}

func serve(logger *slog.Logger, name string, server *http.Server, errChan chan<- error) {
	logger.Info("Starting server", "name", name, "address", server.Addr, "at", time.Now().UTC())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errChan <- fmt.Errorf("%s error: %w", name, err)
	}
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
