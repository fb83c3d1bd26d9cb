package dashboard

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopbill/shopfront/internal/auth"
	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
)

// Handler serves the dashboard page.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers the dashboard at the site root and at /dashboard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Get("/dashboard", h.show)
}

type pageData struct {
	Period  backend.Period
	Periods []backend.Period
	Stats   backend.Stats
	Chart   template.HTML
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	period := backend.ParsePeriod(r.URL.Query().Get("period"))
	overview, err := h.service.Overview(r.Context(), p.Token, period)
	if auth.HandleUnauthorized(w, r, err) {
		return
	}
	data := pageData{Period: period, Periods: backend.Periods, Stats: overview.Stats, Chart: overview.Chart}
	if err := h.templates.Render(w, "pages/dashboard.html", view.Page(r, h.csrf, "Dashboard", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", "pages/dashboard.html"))
	}
}
