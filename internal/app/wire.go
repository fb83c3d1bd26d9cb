package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopbill/shopfront/internal/auth"
	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/billing"
	"github.com/shopbill/shopfront/internal/catalog"
	"github.com/shopbill/shopfront/internal/credit"
	"github.com/shopbill/shopfront/internal/dashboard"
	"github.com/shopbill/shopfront/internal/history"
	"github.com/shopbill/shopfront/internal/observability"
	"github.com/shopbill/shopfront/internal/platform/cache"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
)

// SessionCookie names the browser session cookie.
const SessionCookie = "shopfront_session"

// Deps are the process-level resources the application is built from.
type Deps struct {
	Config  *Config
	Logger  *slog.Logger
	Redis   *redis.Client
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Server is the assembled application.
type Server struct {
	Handler  http.Handler
	Browsers *history.Registry
}

// Build wires every view component against one backend client.
func Build(d Deps) (*Server, error) {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := view.NewEngine()
	if err != nil {
		return nil, err
	}
	sessions := shared.NewSessionManager(d.Redis, SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)

	opts := backend.Options{Timeout: cfg.BackendTimeout, RPS: cfg.BackendRPS}
	if d.Metrics != nil {
		opts.Observer = d.Metrics
	}
	api := backend.NewClient(cfg.BackendURL, opts)

	catalogService := catalog.NewService(api, cache.NewVersioned(d.Redis, "catalog", cfg.CacheTTL), logger)
	dashboardService := dashboard.NewService(api, cache.NewVersioned(d.Redis, "dashboard", cfg.CacheTTL), logger)

	authHandler := auth.NewHandler(logger, auth.NewService(api, logger, cfg.SessionTTL), templates, sessions, csrf)
	historyHandler := history.NewHandler(logger, api, cfg.SearchDebounce, cfg.SessionTTL, templates, csrf, dashboardService)
	authHandler.OnLogout(historyHandler.Browsers().Forget)
	d.Metrics.TrackBrowsers(historyHandler.Browsers().Len)

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthHandler:      authHandler,
		DashboardHandler: dashboard.NewHandler(logger, dashboardService, templates, csrf),
		CatalogHandler:   catalog.NewHandler(logger, catalogService, templates, csrf),
		BillingHandler:   billing.NewHandler(logger, billing.NewService(logger, api, dashboardService), catalogService, templates, csrf),
		HistoryHandler:   historyHandler,
		CreditHandler:    credit.NewHandler(logger, api, templates, csrf, dashboardService),
		Metrics:          d.Metrics,
		Now:              d.Now,
	})
	return &Server{Handler: router, Browsers: historyHandler.Browsers()}, nil
}
