// Package tourbooking собирает HTTP API туров: хранилище, кэш, брокер,
// сервисы и маршруты, и управляет их жизненным циклом.
package tourbooking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/tour-booking/internal/cache"
	"github.com/magabrotheeeer/tour-booking/internal/config"
	"github.com/magabrotheeeer/tour-booking/internal/grpc/server"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/health"
	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/jwt"
	"github.com/magabrotheeeer/tour-booking/internal/lib/password"
	"github.com/magabrotheeeer/tour-booking/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/metrics"
	"github.com/magabrotheeeer/tour-booking/internal/migrations"
	"github.com/magabrotheeeer/tour-booking/internal/query"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
	"github.com/magabrotheeeer/tour-booking/internal/services/notify"
	"github.com/magabrotheeeer/tour-booking/internal/services/ratings"
	"github.com/magabrotheeeer/tour-booking/internal/services/resource"
	"github.com/magabrotheeeer/tour-booking/internal/services/review"
	"github.com/magabrotheeeer/tour-booking/internal/services/tour"
	"github.com/magabrotheeeer/tour-booking/internal/services/user"
	"github.com/magabrotheeeer/tour-booking/internal/storage/mongo"
)

// ShutdownTimeout - время на завершение активных запросов.
const ShutdownTimeout = 15 * time.Second

// App - HTTP API вместе с gRPC health.
type App struct {
	server *http.Server
	health *server.HealthServer
	logger *slog.Logger
	db     *mongo.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости, применяет миграции и собирает маршруты.
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	const op = "app.tourbooking.New"
	response.SetExposeErrors(cfg.ExposeErrors())

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.db, err = mongo.New(ctx, cfg.Mongo); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(a.db.Client, cfg.Database, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.cache, err = cache.InitServer(ctx, cfg.RedisConnection); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.conn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.Delay); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.ch, err = rabbitmq.SetupChannel(a.conn, cfg.Exchange, rabbitmq.GetNotificationQueues()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := buildServices(logger, cfg, a, m)

	checks := map[string]health.Check{
		"mongo": a.db.Ping,
		"redis": func(ctx context.Context) error { return a.cache.Db.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if a.conn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
	}
	probes := make(map[string]server.Probe, len(checks))
	for name, check := range checks {
		probes[name] = server.Probe(check)
	}
	if a.health, err = server.NewHealthServer(cfg.GRPCAddress, cfg.HealthInterval, probes, logger); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, svc, RouteConfig{
		CookieTTL:   cfg.CookieTTL(),
		BodyLimit:   cfg.BodyLimit,
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     middlewarectx.NewIPLimiter(cfg.Requests, cfg.Window),
		Metrics:     m,
		Gatherer:    reg,
		Health:      checks,
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

func buildServices(logger *slog.Logger, cfg *config.Config, a *App, m *metrics.Metrics) Services {
	timeout := cfg.QueryTimeout
	tours := a.db.Tours(timeout)
	users := a.db.Users(timeout)
	reviews := a.db.Reviews(timeout)

	opts := []resource.Option{resource.WithMaxLimit(cfg.MaxLimit)}

	ratingsService := ratings.New(logger.With(slog.String("component", "ratings")), reviews, tours, a.cache)
	reviewService := review.New(logger.With(slog.String("component", "reviews")), reviews, ratingsService, opts...)
	tourService := tour.New(logger.With(slog.String("component", "tours")), tours, tour.Deps{
		Cache:    a.cache,
		CacheTTL: cfg.CacheTTL,
		Reviews:  reviewService,
		Populate: []query.Populate{mongo.TourReviewsPopulate()},
	}, opts...)
	userService := user.New(logger.With(slog.String("component", "users")), users, reviewService, opts...)

	notifier := notify.New(logger, rabbitmq.NewPublisher(a.ch, cfg.Exchange))
	authService := auth.New(
		logger.With(slog.String("component", "auth")),
		users,
		password.NewHasher(cfg.HashConcurrency),
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		notifier,
		m,
	)

	return Services{
		Auth:    authService,
		Tours:   tourService,
		Users:   userService,
		Reviews: reviewService,
	}
}

// Run обслуживает HTTP и gRPC, пока не отменён ctx, затем дожидается
// завершения активных запросов и закрывает соединения.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return a.health.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})
	return g.Wait()
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.db.Close(ctx); err != nil {
			a.logger.Error("failed to close mongo", sl.Err(err))
		}
	}
}
