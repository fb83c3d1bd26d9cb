// Package credit serves the credit customer list, per-customer payment history and
// payment recording.
package credit

import (
	"context"
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

// Backend is the credit surface of the remote API.
type Backend interface {
	ListCreditCustomers(ctx context.Context, token string) ([]backend.CreditCustomer, error)
	CustomerPayments(ctx context.Context, token, phone string) ([]backend.Payment, error)
	ListBills(ctx context.Context, token string, filter backend.BillFilter) ([]backend.Bill, error)
	RecordPayment(ctx context.Context, token string, in backend.PaymentInput) (backend.Payment, error)
}

// Invalidator drops cached views a recorded payment makes stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler serves the credit pages.
type Handler struct {
	logger       *slog.Logger
	api          Backend
	templates    *view.Engine
	csrf         *shared.CSRFManager
	validator    *validator.Validate
	invalidators []Invalidator
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, api Backend, templates *view.Engine, csrf *shared.CSRFManager, invalidators ...Invalidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, templates: templates, csrf: csrf, validator: validator.New(), invalidators: invalidators}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/payments", h.recordPayment)
	r.Get("/{phone}", h.customer)
}

type paymentForm struct {
	Phone  string `validate:"required"`
	BillID string `validate:"required"`
	Amount string `validate:"required,numeric"`
	Notes  string `validate:"max=500"`
}

type paymentAmount struct {
	Amount float64 `validate:"gt=0"`
}

var paymentLabels = map[string]string{
	"Phone":  "Customer",
	"BillID": "Bill",
	"Amount": "Amount",
	"Notes":  "Notes",
}

type listPageData struct {
	Customers []backend.CreditCustomer
}

type customerPageData struct {
	Phone    string
	Customer *backend.CreditCustomer
	Payments []backend.Payment
	Bills    []backend.Bill
	Form     paymentForm
	Errors   httpx.FormErrors
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	customers, err := h.api.ListCreditCustomers(r.Context(), p.Token)
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list credit customers", slog.Any("error", err))
		customers = nil
	}
	h.render(w, r, http.StatusOK, "pages/credit.html", "Credit Customers", listPageData{Customers: customers})
}

func (h *Handler) customer(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))
	h.renderCustomer(w, r, phone, paymentForm{Phone: phone}, httpx.FormErrors{}, http.StatusOK)
}

// renderCustomer loads the customer aggregate, payments and open bills. Each part that
// fails to load is logged and left empty.
func (h *Handler) renderCustomer(w http.ResponseWriter, r *http.Request, phone string, form paymentForm, errs httpx.FormErrors, status int) {
	p, _ := shared.PrincipalFromContext(r.Context())
	ctx := r.Context()
	data := customerPageData{Phone: phone, Form: form, Errors: errs}

	customers, err := h.api.ListCreditCustomers(ctx, p.Token)
	if auth.HandleUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Error("list credit customers", slog.Any("error", err))
	}
	for i := range customers {
		if customers[i].Phone == phone {
			data.Customer = &customers[i]
			break
		}
	}

	payments, err := h.api.CustomerPayments(ctx, p.Token, phone)
	if auth.HandleUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Error("customer payments", slog.Any("error", err))
	}
	data.Payments = payments

	bills, err := h.api.ListBills(ctx, p.Token, backend.BillFilter{Search: phone, BillType: backend.BillCredit})
	if auth.HandleUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
	}
	data.Bills = openBills(bills, phone)

	title := phone
	if data.Customer != nil && data.Customer.Name != "" {
		title = data.Customer.Name
	}
	h.render(w, r, status, "pages/credit_customer.html", title, data)
}

// openBills keeps the credit bills of phone with a balance still due.
func openBills(bills []backend.Bill, phone string) []backend.Bill {
	out := make([]backend.Bill, 0, len(bills))
	for _, b := range bills {
		if _, billPhone := b.Customer(); billPhone != phone {
			continue
		}
		if b.Remaining() > 0 {
			out = append(out, b)
		}
	}
	return out
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := paymentForm{
		Phone:  strings.TrimSpace(r.PostFormValue("phone")),
		BillID: strings.TrimSpace(r.PostFormValue("bill_id")),
		Amount: strings.TrimSpace(r.PostFormValue("amount")),
		Notes:  strings.TrimSpace(r.PostFormValue("notes")),
	}
	errs := httpx.ValidationErrors(h.validator.Struct(form), paymentLabels)
	var amount paymentAmount
	if errs.Empty() {
		amount.Amount, _ = strconv.ParseFloat(form.Amount, 64)
		errs = httpx.ValidationErrors(h.validator.Struct(amount), paymentLabels)
	}
	if !errs.Empty() {
		if form.Phone == "" {
			httpx.RedirectWithFlash(w, r, "/credit", shared.FlashError, "Please choose a customer")
			return
		}
		h.renderCustomer(w, r, form.Phone, form, errs, http.StatusBadRequest)
		return
	}

	p, _ := shared.PrincipalFromContext(r.Context())
	payment, err := h.api.RecordPayment(r.Context(), p.Token, backend.PaymentInput{BillID: form.BillID, Amount: amount.Amount, Notes: form.Notes})
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("record payment", slog.Any("error", err))
		httpx.RedirectWithFlash(w, r, customerURL(form.Phone), shared.FlashError, backend.Message(err, "Failed to record payment"))
		return
	}
	for _, inv := range h.invalidators {
		if err := inv.Invalidate(r.Context()); err != nil {
			h.logger.Warn("invalidate after payment", slog.Any("error", err))
		}
	}
	h.logger.Info("payment recorded", slog.String("payment_id", payment.ID), slog.String("bill_id", form.BillID))
	httpx.RedirectWithFlash(w, r, customerURL(form.Phone), shared.FlashSuccess, "Payment of "+view.Money(amount.Amount)+" recorded")
}

func customerURL(phone string) string {
	return "/credit/" + url.PathEscape(phone)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tpl, title string, data any) {
	if err := h.templates.RenderStatus(w, status, tpl, view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", tpl))
	}
}
