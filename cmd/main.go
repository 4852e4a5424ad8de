package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"supmap-directions/internal/api"
	"supmap-directions/internal/cache"
	"supmap-directions/internal/config"
	"supmap-directions/internal/gis/directions"
	"supmap-directions/internal/incidents"
	"supmap-directions/internal/subscriber"
	"supmap-directions/internal/ws"
	"syscall"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}()
	sessionCache := cache.NewRedisSessionCache(redisClient, conf.SessionTTL)

	routes := directions.NewClient(conf.DirectionsBaseURL, conf.DirectionsAPIKey, directions.ClientOptions{
		Timeout: conf.DirectionsTimeout,
		Mode:    conf.TravelMode,
	})

	wsManager := ws.NewManager(ctx, logger, routes, sessionCache, conf.ViewportPadding.EdgePadding())
	go wsManager.Start()
	defer wsManager.Shutdown()

	multicaster := incidents.NewMulticaster(wsManager, conf.IncidentToleranceMeters, logger)
	sub := subscriber.NewSubscriber(logger, redisClient, conf.RedisIncidentsChannel, multicaster)
	go func() {
		if err := sub.Start(ctx); err != nil {
			logger.Error("subscriber stopped with error", "error", err)
		}
	}()

	server := api.NewServer(conf, wsManager, sessionCache, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}

	return nil
}
