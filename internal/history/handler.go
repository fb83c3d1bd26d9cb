package history

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopbill/shopfront/internal/auth"
	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/httpx"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
)

// Backend is the bill surface of the remote API.
type Backend interface {
	ListBills(ctx context.Context, token string, filter backend.BillFilter) ([]backend.Bill, error)
	DeleteBill(ctx context.Context, token, id string) error
}

// Invalidator drops cached views a deleted bill makes stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler serves the bill history page, its live results fragment and bill deletion.
type Handler struct {
	logger       *slog.Logger
	api          Backend
	browsers     *Registry
	templates    *view.Engine
	csrf         *shared.CSRFManager
	invalidators []Invalidator
}

// NewHandler builds a Handler. delay is the search debounce; idle bounds how long
// an unused per-session browser is kept.
func NewHandler(logger *slog.Logger, api Backend, delay, idle time.Duration, templates *view.Engine, csrf *shared.CSRFManager, invalidators ...Invalidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:       logger,
		api:          api,
		browsers:     NewRegistry(delay, idle, api.ListBills),
		templates:    templates,
		csrf:         csrf,
		invalidators: invalidators,
	}
}

// Browsers exposes the per-session registry so it can be swept and cleared on logout.
func (h *Handler) Browsers() *Registry {
	return h.browsers
}

// MountRoutes registers history routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.page)
	r.Get("/results", h.results)
	r.Post("/{id}/delete", h.delete)
}

type pageData struct {
	Filter backend.BillFilter
	Bills  []backend.Bill
}

func filterFromQuery(r *http.Request) backend.BillFilter {
	q := r.URL.Query()
	f := backend.BillFilter{Search: strings.TrimSpace(q.Get("search"))}
	if bt := backend.BillType(q.Get("bill_type")); bt.Valid() {
		f.BillType = bt
	}
	return f
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	filter := filterFromQuery(r)
	bills, err := h.api.ListBills(r.Context(), p.Token, filter)
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list bills", slog.Any("error", err))
		bills = nil
	}
	data := view.Page(r, h.csrf, "Bills", pageData{Filter: filter, Bills: bills})
	if err := h.templates.RenderStatus(w, http.StatusOK, "pages/bills.html", data); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", "pages/bills.html"))
	}
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	filter := filterFromQuery(r)
	sessionID := ""
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sessionID = sess.ID
	}
	bills, filter, err := h.browsers.Browser(sessionID).Search(r.Context(), p.Token, filter)
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("list bills", slog.Any("error", err))
		bills = nil
	}
	data := view.Fragment(r, h.csrf, pageData{Filter: filter, Bills: bills})
	if err := h.templates.RenderStatus(w, http.StatusOK, "partials/bill_results.html", data); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", "partials/bill_results.html"))
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	if err := h.api.DeleteBill(r.Context(), p.Token, chi.URLParam(r, "id")); err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("delete bill", slog.Any("error", err))
		httpx.RedirectWithFlash(w, r, "/bills", shared.FlashError, backend.Message(err, "Failed to delete bill"))
		return
	}
	for _, inv := range h.invalidators {
		if err := inv.Invalidate(r.Context()); err != nil {
			h.logger.Warn("invalidate after delete", slog.Any("error", err))
		}
	}
	httpx.RedirectWithFlash(w, r, "/bills", shared.FlashSuccess, "Bill deleted successfully")
}
