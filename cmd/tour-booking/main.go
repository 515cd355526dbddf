// @title Tour Booking API
// @version 1.0
// @description REST API бронирования туров: туры, пользователи, отзывы.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/magabrotheeeer/tour-booking/docs"
	"github.com/magabrotheeeer/tour-booking/internal/app/tourbooking"
	"github.com/magabrotheeeer/tour-booking/internal/config"
	"github.com/magabrotheeeer/tour-booking/internal/grpc/client"
	"github.com/magabrotheeeer/tour-booking/internal/grpc/server"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "check gRPC health of a running instance and exit")
	flag.Parse()

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	if *healthcheck {
		os.Exit(checkHealth(cfg.GRPCAddress, logger))
	}

	logger.Info("starting tour-booking", slog.String("env", cfg.Env))
	logger.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := tourbooking.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize tour-booking app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("tour-booking app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("tour-booking app stopped gracefully")
}

func checkHealth(addr string, logger *slog.Logger) int {
	c, err := client.NewHealthClient(addr)
	if err != nil {
		logger.Error("healthcheck failed", sl.Err(err))
		return 1
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Check(ctx, server.ServiceName); err != nil {
		logger.Error("healthcheck failed", sl.Err(err))
		return 1
	}
	return 0
}
