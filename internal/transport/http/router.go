package http

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-subtracker/internal/application/export"
	"github.com/go-subtracker/internal/application/list"
	"github.com/go-subtracker/internal/application/notification"
	"github.com/go-subtracker/internal/application/pricehistory"
	"github.com/go-subtracker/internal/application/reminder"
	"github.com/go-subtracker/internal/application/session"
	"github.com/go-subtracker/internal/application/stats"
	"github.com/go-subtracker/internal/application/subscription"
	"github.com/go-subtracker/internal/application/user"
	"github.com/go-subtracker/internal/config"
	"github.com/go-subtracker/internal/domain"
	jwtinfra "github.com/go-subtracker/internal/infrastructure/jwt"
	"github.com/go-subtracker/internal/infrastructure/metrics"
	"github.com/go-subtracker/internal/transport/http/handler"
	appmiddleware "github.com/go-subtracker/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         UserRepository
	SubscriptionRepo SubscriptionRepository
	ListRepo         ListRepository
	PriceHistoryRepo PriceHistoryRepository
	ObjectStore      ObjectStore // optional; enables export archives
	Reminder         *reminder.Evaluator // required
	JWTProvider      *jwtinfra.Provider
	Metrics          prometheus.Gatherer // optional; serves /metrics
	Log              logrus.FieldLogger  // access log; discarded when nil
	Now              func() time.Time
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{
		Logger:  log.WithField("component", "http"),
		NoColor: true,
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	var signer interface {
		Sign(userID, role string) (string, time.Time, error)
	}
	authMw := func(next http.Handler) http.Handler { return next }
	if deps.JWTProvider != nil {
		signer = deps.JWTProvider
		authMw = appmiddleware.Auth(deps.JWTProvider)
	}

	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo, Reminder: deps.Reminder})
	sessionSvc := session.NewService(deps.UserRepo, signer)
	notifSvc := notification.NewService(deps.UserRepo)
	subSvc := subscription.NewService(subscription.ServiceDeps{
		SubscriptionRepo: deps.SubscriptionRepo,
		ListRepo:         deps.ListRepo,
		PriceHistoryRepo: deps.PriceHistoryRepo,
		Reminder:         deps.Reminder,
		Now:              deps.Now,
	})
	listSvc := list.NewService(deps.ListRepo, deps.SubscriptionRepo)
	historySvc := pricehistory.NewService(deps.PriceHistoryRepo, deps.SubscriptionRepo)
	statsSvc := stats.NewService(stats.ServiceDeps{
		SubscriptionRepo: deps.SubscriptionRepo,
		Now:              deps.Now,
		Location:         cfg.Reminder.Location(),
	})
	exportSvc := export.NewService(export.ServiceDeps{
		SubscriptionRepo: deps.SubscriptionRepo,
		Store:            deps.ObjectStore,
		Now:              deps.Now,
	})

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	subH := handler.NewSubscriptionHandler(subSvc, historySvc)
	listH := handler.NewListHandler(listSvc)
	statsH := handler.NewStatsHandler(statsSvc, historySvc)
	exportH := handler.NewExportHandler(exportSvc)
	reminderH := handler.NewReminderHandler(deps.Reminder)

	if deps.Metrics != nil {
		r.Handle("/metrics", metrics.Handler(deps.Metrics))
	}

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/me", userH.GetMe)
			r.Put("/me", userH.UpdateMe)

			r.Get("/subscriptions", subH.List)
			r.Post("/subscriptions", subH.Create)
			r.Post("/subscriptions/import/preview", subH.PreviewImport)
			r.Post("/subscriptions/import", subH.Import)
			r.Get("/subscriptions/{id}", subH.Get)
			r.Put("/subscriptions/{id}", subH.Update)
			r.Delete("/subscriptions/{id}", subH.Delete)
			r.Get("/subscriptions/{id}/price-history", subH.ListPriceHistory)
			r.Post("/subscriptions/{id}/price-history", subH.CreatePriceHistory)

			r.Get("/lists", listH.List)
			r.Post("/lists", listH.Create)
			r.Put("/lists/{id}", listH.Update)
			r.Delete("/lists/{id}", listH.Delete)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllAsRead)
			r.Put("/notifications/{id}/read", notifH.MarkAsRead)
			r.Delete("/notifications", notifH.ClearAll)

			r.Post("/reminders/run", reminderH.Run)

			r.Get("/stats/summary", statsH.Summary)
			r.Get("/stats/analytics", statsH.Analytics)
			r.Get("/stats/calendar", statsH.Calendar)
			r.Get("/stats/savings", statsH.Savings)

			r.Get("/export", exportH.Download)
			r.Post("/export/archive", exportH.Archive)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/admin/reminders/sweep", reminderH.Sweep)
			})
		})
	})

	return r
}
