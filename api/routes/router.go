package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/retaildesk/api/controllers"
	"github.com/angelmondragon/retaildesk/api/middleware"
	"github.com/angelmondragon/retaildesk/internal/access"
	"github.com/angelmondragon/retaildesk/internal/auth"
	"github.com/angelmondragon/retaildesk/internal/customers"
	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/internal/sales"
	"github.com/angelmondragon/retaildesk/internal/users"
	"github.com/angelmondragon/retaildesk/pkg/config"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/metrics"
)

type loginLimiter interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

// Deps carries everything the sandbox router serves.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Auth      auth.Service
	Sales     sales.Service
	Products  *products.Repository
	Customers *customers.Repository
	Users     *users.Repository

	// Optional.
	Limiter  loginLimiter
	Ready    map[string]controllers.Pinger
	Registry *prometheus.Registry
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	var httpMetrics *metrics.HTTPMetrics
	if d.Registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(d.Registry)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.Sandbox.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		policy := middleware.NewLoginRateLimitPolicy(cfg.Sandbox.LoginWindow, cfg.Sandbox.LoginIPLimit, cfg.Sandbox.LoginUserLimit)
		r.With(middleware.LoginRateLimit(policy, d.Limiter, logg)).Post("/auth/login", controllers.AuthLogin(d.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(middleware.RequireAccess(access.RouteProducts, logg)).Get("/products", controllers.ListProducts(d.Products, logg))
			r.With(middleware.RequireAccess(access.RouteCustomers, logg)).Get("/customers", controllers.ListCustomers(d.Customers, logg))
			r.With(middleware.RequireAccess(access.RouteSales, logg)).Get("/users", controllers.ListUsers(d.Users, logg))

			r.Route("/sales", func(r chi.Router) {
				r.Use(middleware.RequireAccess(access.RouteSales, logg))
				r.Get("/", controllers.SalesList(d.Sales, logg))
				r.Post("/checkout", controllers.SalesCheckout(d.Sales, logg))
				r.Post("/verify-payment", controllers.SalesVerifyPayment(d.Sales, logg))
				r.Get("/{id}", controllers.SalesGet(d.Sales, logg))
				r.With(middleware.RequireAccess(access.RoutePayments, logg)).Patch("/{id}", controllers.SalesUpdate(d.Sales, logg))
			})

			r.With(middleware.RequireAccess(access.RouteSales, logg)).
				Post("/sandbox/payments/{md5}/settle", controllers.SandboxSettlePayment(d.Sales, logg))
		})
	})

	return r
}
