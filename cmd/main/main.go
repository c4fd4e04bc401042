package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"feedrace/src/config"
	"feedrace/src/engine"
	"feedrace/src/feeds"
	"feedrace/src/grpc_control"
	"feedrace/src/hub"
	"feedrace/src/ideas"
	"feedrace/src/logger"
	"feedrace/src/publishers"
	"feedrace/src/rest"
	"feedrace/src/serializers"
)

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Credentials come from the environment; a .env file is a convenience
	// for local runs and its absence is fine.
	_ = godotenv.Load()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.Name, cfg.LogLevel)
	defer appLogger.Sync()

	// Core wiring: the engine owns all market state, the hub fans events out
	// to websocket viewers and replays state to new ones.
	core := engine.NewEngine(cfg.MConfig, appLogger, nil)
	sessionHub := hub.NewHub(appLogger, core)
	core.SetSink(sessionHub)

	// Optional message-bus mirror of the broadcast stream.
	if cfg.NATS.Enabled {
		serializer := serializers.NewJSONSerializer()
		if cfg.NATS.Serializer == "binary" {
			serializer = serializers.NewBinSerializer()
		}
		publisher := publishers.NewNATSPublisher(&cfg.NATS, appLogger, serializer)
		if err := publisher.Connect(); err != nil {
			appLogger.Warning("NATS mirror unavailable, continuing without it: %v", err)
		} else {
			core.SetPublisher(publisher)
			defer publisher.Disconnect()
		}
	}

	// Feed adapters
	factory := feeds.NewFactory(cfg.MConfig, appLogger, core)
	feedList, err := factory.CreateAllFeeds()
	if err != nil {
		appLogger.Critical("failed to create feeds: %v", err)
		os.Exit(1)
	}
	for _, feed := range feedList {
		core.RegisterFeed(feed)
		if err := feed.Start(); err != nil {
			appLogger.Error("failed to start feed %s: %v", feed.GetName(), err)
		}
	}
	defer func() {
		for _, feed := range feedList {
			_ = feed.Stop()
		}
	}()

	// Idea generator rides on the slow source's candle window.
	ideasDone := make(chan struct{})
	defer close(ideasDone)
	generator := ideas.NewGenerator(appLogger, core, "codex", 0)
	go generator.Run(ideasDone)

	// gRPC health endpoint for orchestrator probes
	healthService, err := grpc_control.NewGRPCService(cfg, appLogger)
	if err != nil {
		appLogger.Critical("failed to create gRPC service: %v", err)
		os.Exit(1)
	}
	if err := healthService.Start(); err != nil {
		appLogger.Critical("failed to start gRPC service: %v", err)
		os.Exit(1)
	}

	// HTTP surface: websocket endpoint plus the control routes
	router := mux.NewRouter()
	router.HandleFunc("/ws", sessionHub.HandleWS)
	rest.NewHandler(appLogger, core).RegisterRoutes(router)

	port := cfg.Port
	if fromEnv := os.Getenv("PORT"); fromEnv != "" {
		if parsed, err := strconv.Atoi(fromEnv); err == nil {
			port = parsed
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		appLogger.Info("%s listening on :%d (ws at /ws), gRPC health on %s:%d",
			cfg.Name, port, cfg.GRPCHost, cfg.GRPCPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Critical("http server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Warning("http shutdown error: %v", err)
	}
	_ = healthService.Stop(ctx)
	sessionHub.Close()
}
