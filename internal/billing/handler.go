package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopbill/shopfront/internal/auth"
	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/httpx"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
)

// SubmittedMessage is flashed after a bill is generated.
const SubmittedMessage = "Bill generated successfully!"

// ItemSource lists and resolves catalog items for the composer.
type ItemSource interface {
	Search(ctx context.Context, token, query string) ([]backend.Item, error)
	Item(ctx context.Context, token, id string) (backend.Item, error)
}

// Handler serves the bill composer.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	items     ItemSource
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, items ItemSource, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, items: items, templates: templates, csrf: csrf, validator: validator.New()}
}

// MountRoutes registers composer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/mode", h.setMode)
	r.Post("/lines", h.addLine)
	r.Post("/lines/{index}/quantity", h.setQuantity)
	r.Post("/lines/{index}/price", h.setPrice)
	r.Post("/lines/{index}/remove", h.removeLine)
	r.Post("/submit", h.submit)
	r.Post("/clear", h.clear)
}

type submitForm struct {
	BillType      string `validate:"required,oneof=paid credit"`
	AmountPaid    string `validate:"omitempty,numeric"`
	CustomerName  string `validate:"max=120"`
	CustomerPhone string `validate:"max=20"`
}

var submitLabels = map[string]string{
	"BillType":      "Bill type",
	"AmountPaid":    "Amount paid",
	"CustomerName":  "Customer name",
	"CustomerPhone": "Customer phone",
}

type pageData struct {
	Query         string
	Items         []backend.Item
	Mode          backend.PricingMode
	Lines         []Line
	Subtotal      float64
	Profit        float64
	Form          submitForm
	Errors        httpx.FormErrors
	Remaining     float64
	ShowRemaining bool
}

func (f submitForm) input() SubmitInput {
	in := SubmitInput{
		BillType:      backend.BillType(f.BillType),
		CustomerName:  f.CustomerName,
		CustomerPhone: f.CustomerPhone,
	}
	if f.AmountPaid != "" {
		if v, err := strconv.ParseFloat(f.AmountPaid, 64); err == nil {
			in.AmountPaid = &v
		}
	}
	return in
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.renderPage(w, r, LoadDraft(sess), submitForm{BillType: string(backend.BillPaid)}, httpx.FormErrors{}, http.StatusOK)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, draft *Draft, form submitForm, errs httpx.FormErrors, status int) {
	p, _ := shared.PrincipalFromContext(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := h.items.Search(r.Context(), p.Token, query)
	if auth.HandleUnauthorized(w, r, err) {
		return
	}

	subtotal, profit := draft.Totals()
	in := form.input()
	data := pageData{
		Query:    query,
		Items:    items,
		Mode:     draft.Mode,
		Lines:    draft.Lines,
		Subtotal: subtotal,
		Profit:   profit,
		Form:     form,
		Errors:   errs,
	}
	if in.AmountPaid != nil && !draft.Empty() {
		data.Remaining = draft.RemainingBalance(in)
		data.ShowRemaining = data.Remaining > 0
	}
	if err := h.templates.RenderStatus(w, status, "pages/billing.html", view.Page(r, h.csrf, "New Bill", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", "pages/billing.html"))
	}
}

// mutate loads the draft, applies fn and saves it back before redirecting to the composer.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*Draft) error) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	draft := LoadDraft(sess)
	location := composerURL(r.PostFormValue("q"))
	if err := fn(draft); err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		httpx.RedirectWithFlash(w, r, location, shared.FlashError, errorMessage(err))
		return
	}
	if err := SaveDraft(sess, draft); err != nil {
		h.logger.Error("save draft", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) setMode(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Draft) error {
		d.SetMode(backend.PricingMode(r.PostFormValue("mode")))
		return nil
	})
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Draft) error {
		p, _ := shared.PrincipalFromContext(r.Context())
		item, err := h.items.Item(r.Context(), p.Token, r.PostFormValue("item_id"))
		if err != nil {
			h.logger.Error("load item", slog.Any("error", err))
			return err
		}
		return d.AddLine(item, d.Mode)
	})
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Draft) error {
		qty, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
		if err != nil {
			qty = 1
		}
		return d.SetQuantity(lineIndex(r), qty)
	})
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Draft) error {
		price, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("price")), 64)
		if err != nil {
			price = 0
		}
		return d.SetPrice(lineIndex(r), price)
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Draft) error {
		return d.RemoveLine(lineIndex(r))
	})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Draft) error {
		d.Clear()
		return nil
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	draft := LoadDraft(sess)
	form := submitForm{
		BillType:      strings.TrimSpace(r.PostFormValue("bill_type")),
		AmountPaid:    strings.TrimSpace(r.PostFormValue("amount_paid")),
		CustomerName:  strings.TrimSpace(r.PostFormValue("customer_name")),
		CustomerPhone: strings.TrimSpace(r.PostFormValue("customer_phone")),
	}
	if errs := httpx.ValidationErrors(h.validator.Struct(form), submitLabels); !errs.Empty() {
		h.renderPage(w, r, draft, form, errs, http.StatusBadRequest)
		return
	}

	p, _ := shared.PrincipalFromContext(r.Context())
	bill, err := h.service.Submit(r.Context(), p.Token, draft, form.input())
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		status := http.StatusBadRequest
		if !isDraftError(err) {
			h.logger.Error("create bill", slog.Any("error", err))
			status = httpx.StatusFor(err)
		}
		h.renderPage(w, r, draft, form, submitErrors(err), status)
		return
	}

	ClearDraft(sess)
	h.logger.Info("bill created", slog.String("bill_number", bill.BillNumber))
	httpx.RedirectWithFlash(w, r, "/dashboard", shared.FlashSuccess, SubmittedMessage)
}

func isDraftError(err error) bool {
	return errors.Is(err, ErrEmptyDraft) || errors.Is(err, ErrCustomerRequired) ||
		errors.Is(err, ErrInvalidBillType) || errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAmountTooLarge)
}

func submitErrors(err error) httpx.FormErrors {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return httpx.FormErrors{"AmountPaid": err.Error()}
	case errors.Is(err, ErrInvalidBillType):
		return httpx.FormErrors{"BillType": err.Error()}
	case isDraftError(err):
		return httpx.FormErrors{"general": err.Error()}
	default:
		return httpx.FormErrors{"general": backend.Message(err, "Failed to generate bill. Please try again.")}
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrLineOutOfRange), errors.Is(err, ErrAmountTooLarge):
		return err.Error()
	case errors.Is(err, backend.ErrNotFound):
		return "Item not found"
	default:
		return backend.Message(err, "Something went wrong. Please try again.")
	}
}

func lineIndex(r *http.Request) int {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return -1
	}
	return i
}

func composerURL(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "/billing"
	}
	return "/billing?" + url.Values{"q": {query}}.Encode()
}
