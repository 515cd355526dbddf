package tourbooking

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/auth/session"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/factory"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/health"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/reviews"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/tours"
	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/users"
	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/metrics"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
	"github.com/magabrotheeeer/tour-booking/internal/services/review"
	"github.com/magabrotheeeer/tour-booking/internal/services/tour"
	"github.com/magabrotheeeer/tour-booking/internal/services/user"
)

// Services - сервисы, которые обслуживает HTTP API.
type Services struct {
	Auth    *auth.Service
	Tours   *tour.Service
	Users   *user.Service
	Reviews *review.Service
}

// RouteConfig - настройки маршрутизатора.
type RouteConfig struct {
	CookieTTL   time.Duration
	BodyLimit   int64
	CORSOrigins []string
	Limiter     *middlewarectx.IPLimiter
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Health      map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, rc RouteConfig) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.Metrics(rc.Metrics),
		cors.New(cors.Options{
			AllowedOrigins:   rc.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler,
	)

	protect := middlewarectx.Protect(svc.Auth, logger)
	restrict := func(roles ...string) func(http.Handler) http.Handler {
		return middlewarectx.RestrictTo(logger, roles...)
	}

	tourCRUD := factory.New[models.Tour](logger, svc.Tours, "tour", "tours",
		factory.WithBodyLimit[models.Tour](rc.BodyLimit))
	reviewCRUD := factory.New[models.Review](logger, svc.Reviews, "review", "reviews",
		factory.WithParent[models.Review](reviews.TourParam, "tour"),
		factory.WithPrepare(reviews.SetTourUserIDs),
		factory.WithBodyLimit[models.Review](rc.BodyLimit))
	userCRUD := factory.New[models.User](logger, svc.Users, "user", "users",
		factory.WithBodyLimit[models.User](rc.BodyLimit))
	me := factory.New[models.User](logger, svc.Users, "user", "users",
		factory.WithIDFrom[models.User](users.MeID))

	reports := tours.New(logger, svc.Tours)
	passwords := password.New(logger, svc.Auth, rc.CookieTTL)
	account := users.New(logger, svc.Users, rc.BodyLimit)

	reviewRoutes := func(r chi.Router) {
		r.Get("/", reviewCRUD.GetAll)
		r.With(protect, restrict(models.RoleUser)).Post("/", reviewCRUD.CreateOne)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(rc.Limiter, logger))

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", tourCRUD.GetAll)
			r.With(protect, restrict(models.RoleAdmin, models.RoleLeadGuide)).Post("/", tourCRUD.CreateOne)

			r.With(tours.AliasTopTours).Get("/top-5-cheap", tourCRUD.GetAll)
			r.Get("/tour-stats", reports.Stats)
			r.With(protect, restrict(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide)).
				Get("/monthly-plan/{year}", reports.MonthlyPlan)
			r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", reports.Within)
			r.Get("/distances/{latlng}/unit/{unit}", reports.Distances)

			r.Get("/{id}", tourCRUD.GetOne)
			r.Group(func(r chi.Router) {
				r.Use(protect, restrict(models.RoleAdmin, models.RoleLeadGuide))
				r.Patch("/{id}", tourCRUD.UpdateOne)
				r.Delete("/{id}", tourCRUD.DeleteOne)
			})

			r.Route("/{"+reviews.TourParam+"}/reviews", reviewRoutes)
		})

		r.Route("/users", func(r chi.Router) {
			// Открытые конечные точки
			r.Post("/signup", signup.New(logger, svc.Auth, rc.CookieTTL).ServeHTTP)
			r.Post("/login", login.New(logger, svc.Auth, rc.CookieTTL).ServeHTTP)
			r.Get("/logout", session.Logout{}.ServeHTTP)
			r.Post("/forgotPassword", passwords.Forgot)
			r.Patch("/resetPassword/{token}", passwords.Reset)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Patch("/updateMyPassword", passwords.Update)
				r.Get("/me", me.GetOne)
				r.Patch("/updateMe", account.UpdateMe)
				r.Delete("/deleteMe", account.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(restrict(models.RoleAdmin))
					r.Get("/", userCRUD.GetAll)
					r.Post("/", account.CreateUser)
					r.Get("/{id}", userCRUD.GetOne)
					r.Patch("/{id}", userCRUD.UpdateOne)
					r.Delete("/{id}", userCRUD.DeleteOne)
				})
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			reviewRoutes(r)
			r.Get("/{id}", reviewCRUD.GetOne)
			r.Group(func(r chi.Router) {
				r.Use(protect, restrict(models.RoleUser, models.RoleAdmin))
				r.Patch("/{id}", reviewCRUD.UpdateOne)
				r.Delete("/{id}", reviewCRUD.DeleteOne)
			})
		})
	})

	r.Get("/health", health.New(logger, 2*time.Second, rc.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(rc.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, r, logger, apperr.NotFound("Can't find "+r.URL.Path+" on this server!"))
	})
}
