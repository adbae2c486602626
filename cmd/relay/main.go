package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/origin"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Returning instead of exiting lets the deferred closing of badger and bluge run.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB) and search index (Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Core
	messageRepository := repositories.NewMessageRepository(db, logger)
	userRepository := repositories.NewUserRepository(db)
	messageIndex := repositories.NewMessageIndex(blugeWriter, logger)

	registry := runtime.NewRegistry(logger)
	monitor := observability.NewMonitor(logger).WithOnline(func() int { return len(registry.Snapshot()) })
	broadcaster := runtime.NewBroadcaster(logger, registry, monitor, config.SinkTimeout)
	registry.AddListener(broadcaster)

	indexQueue := make(chan domain.Message, config.IndexBufferSize)
	relay := runtime.NewRelay(logger, registry, messageRepository, monitor,
		contract.ClockFunc(time.Now), config.SinkTimeout, config.MaxContentLength).
		WithIndexQueue(indexQueue)
	if config.EnableModeration {
		censor, err := buildCensor(charReplacement, logger)
		if err != nil {
			return exitConfig, err
		}
		relay.WithCensor(censor)
	}

	issuer := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, issuer, logger)
	chatService := services.NewChatService(registry, relay, broadcaster,
		services.NewHistoryService(messageRepository), userRepository, messageIndex, monitor)

	// 4. Supervised workers
	supervisor := workers.NewSupervisor(logger, config.RestartInterval).OnRestart(monitor.IncrWorkerRestarts)
	supervisor.Add(
		workers.NewIndexWorker(logger, messageIndex, indexQueue),
		workers.NewHealthMonitoringWorker(logger, monitor, config.MetricInterval, func() int { return len(indexQueue) }),
		workers.NewReporterWorker(logger, monitor, config.ReportInterval),
	)
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(ctx)
	}()

	// 5. HTTP: REST + websocket
	policy := origin.NewPolicy(config.Origins(), logger)
	wsHandler := websocket.NewHandler(logger, chatService, issuer, policy,
		config.ConnectionBufferSize, websocket.DefaultKeepAlive())
	restHandler := rest.NewHandler(logger, authService, chatService, issuer, policy).
		Mount("GET /ws", wsHandler)
	if config.EnableInspect {
		restHandler.Mount("GET /debug/inspect", internal.NewInspectHandler(db, logger, internal.MessageMapper,
			func() any { return monitor.GetLatest() }))
		logger.Warn("Badger inspector enabled", "url", fmt.Sprintf("http://%s/debug/inspect", config.HTTPAddr()))
	}
	httpServer := &http.Server{
		Addr:              config.HTTPAddr(),
		Handler:           restHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Hijacked websocket connections are not closed by Shutdown
	httpServer.RegisterOnShutdown(wsHandler.Shutdown)

	errChan := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. gRPC
	listener, err := net.Listen("tcp", config.GRPCAddr())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.GRPCAddr(), err)
	}
	grpcServer, healthServer := server.NewGRPCServer(logger, issuer, chatService)
	go func() {
		logger.Info("Starting gRPC server", "address", config.GRPCAddr(), "at", time.Now().UTC())
		for serviceName := range grpcServer.GetServiceInfo() {
			logger.Debug("gRPC exposed service", "name", serviceName)
		}
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful shutdown: sockets first so every identity logs out, then workers
	logger.Info("Shutting down gracefully...")
	healthServer.SetServingStatus(server.PresenceServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	wsHandler.Shutdown()
	grpcServer.GracefulStop()
	supervisor.Stop()
	stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithSyncWrites(config.BadgerSyncWrites)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

func buildCensor(charReplacement rune, logger *slog.Logger) (*moderation.LanguageCensor, error) {
	dictionaries, err := moderation.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("censored dictionaries: %w", err)
	}
	return moderation.NewLanguageCensor(dictionaries, charReplacement, logger)
}
