package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shopbill/shopfront/internal/auth"
	"github.com/shopbill/shopfront/internal/billing"
	"github.com/shopbill/shopfront/internal/catalog"
	"github.com/shopbill/shopfront/internal/credit"
	"github.com/shopbill/shopfront/internal/dashboard"
	"github.com/shopbill/shopfront/internal/history"
	"github.com/shopbill/shopfront/internal/observability"
	"github.com/shopbill/shopfront/internal/platform/httpx"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	CatalogHandler   *catalog.Handler
	BillingHandler   *billing.Handler
	HistoryHandler   *history.Handler
	CreditHandler    *credit.Handler
	Metrics          *observability.Metrics
	Now              func() time.Time
}

// NewRouter constructs the chi.Router with shopfront defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets skip the session, CSRF and rate limiting layers.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
			Now:            params.Now,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			params.DashboardHandler.MountRoutes(r)
			r.Route("/items", params.CatalogHandler.MountRoutes)
			r.Route("/billing", params.BillingHandler.MountRoutes)
			r.Route("/bills", params.HistoryHandler.MountRoutes)
			r.Route("/credit", params.CreditHandler.MountRoutes)
		})
	})

	return r
}

// staticCacheHandler lets browsers cache embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
