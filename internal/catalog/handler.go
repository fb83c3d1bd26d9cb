package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
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

// maxUpload bounds the spreadsheet accepted by the import form.
const maxUpload = 10 << 20

// Handler serves the catalog pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/new", h.showNew)
	r.Post("/import", h.importItems)
	r.Get("/export", h.export)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.delete)
}

type itemForm struct {
	ID             string
	Name           string `validate:"required,max=200"`
	CostPrice      string `validate:"required,numeric"`
	CustomerPrice  string `validate:"required,numeric"`
	CarpenterPrice string `validate:"required,numeric"`
}

type itemPrices struct {
	CostPrice      float64 `validate:"gte=0"`
	CustomerPrice  float64 `validate:"gte=0"`
	CarpenterPrice float64 `validate:"gte=0"`
}

var itemLabels = map[string]string{
	"Name":           "Name",
	"CostPrice":      "Cost price",
	"CustomerPrice":  "Customer price",
	"CarpenterPrice": "Carpenter price",
}

type listPageData struct {
	Query string
	Items []backend.Item
}

type formPageData struct {
	Form   itemForm
	Errors httpx.FormErrors
}

func formFromItem(item backend.Item) itemForm {
	return itemForm{
		ID:             item.ID,
		Name:           item.Name,
		CostPrice:      strconv.FormatFloat(item.CostPrice, 'f', -1, 64),
		CustomerPrice:  strconv.FormatFloat(item.CustomerPrice, 'f', -1, 64),
		CarpenterPrice: strconv.FormatFloat(item.CarpenterPrice, 'f', -1, 64),
	}
}

func formFromRequest(r *http.Request) itemForm {
	return itemForm{
		Name:           strings.TrimSpace(r.PostFormValue("name")),
		CostPrice:      strings.TrimSpace(r.PostFormValue("cost_price")),
		CustomerPrice:  strings.TrimSpace(r.PostFormValue("customer_price")),
		CarpenterPrice: strings.TrimSpace(r.PostFormValue("carpenter_price")),
	}
}

// parse validates the form and converts it to a backend payload.
func (h *Handler) parse(form itemForm) (backend.ItemInput, httpx.FormErrors) {
	errs := httpx.ValidationErrors(h.validator.Struct(form), itemLabels)
	if !errs.Empty() {
		return backend.ItemInput{}, errs
	}
	// numeric has already been checked
	prices := itemPrices{}
	prices.CostPrice, _ = strconv.ParseFloat(form.CostPrice, 64)
	prices.CustomerPrice, _ = strconv.ParseFloat(form.CustomerPrice, 64)
	prices.CarpenterPrice, _ = strconv.ParseFloat(form.CarpenterPrice, 64)
	if err := h.validator.Struct(prices); err != nil {
		return backend.ItemInput{}, httpx.ValidationErrors(err, itemLabels)
	}
	return backend.ItemInput{
		Name:           form.Name,
		CostPrice:      prices.CostPrice,
		CustomerPrice:  prices.CustomerPrice,
		CarpenterPrice: prices.CarpenterPrice,
	}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := h.service.Search(r.Context(), p.Token, query)
	if auth.HandleUnauthorized(w, r, err) {
		return
	}
	h.render(w, r, "pages/items.html", "Items", listPageData{Query: query, Items: items}, http.StatusOK)
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/item_form.html", "Add Item", formPageData{Errors: httpx.FormErrors{}}, http.StatusOK)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	item, err := h.service.Item(r.Context(), p.Token, chi.URLParam(r, "id"))
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("load item", slog.Any("error", err))
		httpx.RedirectWithFlash(w, r, "/items", shared.FlashError, "Item not found")
		return
	}
	h.render(w, r, "pages/item_form.html", "Edit Item", formPageData{Form: formFromItem(item), Errors: httpx.FormErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := formFromRequest(r)
	in, errs := h.parse(form)
	if errs != nil {
		h.render(w, r, "pages/item_form.html", "Add Item", formPageData{Form: form, Errors: errs}, http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	if _, err := h.service.Create(r.Context(), p.Token, in); err != nil {
		h.mutationFailed(w, r, err, "pages/item_form.html", "Add Item", form, "Failed to add item")
		return
	}
	httpx.RedirectWithFlash(w, r, "/items", shared.FlashSuccess, "Item added successfully")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := formFromRequest(r)
	form.ID = chi.URLParam(r, "id")
	in, errs := h.parse(form)
	if errs != nil {
		h.render(w, r, "pages/item_form.html", "Edit Item", formPageData{Form: form, Errors: errs}, http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	if _, err := h.service.Update(r.Context(), p.Token, form.ID, in); err != nil {
		h.mutationFailed(w, r, err, "pages/item_form.html", "Edit Item", form, "Failed to update item")
		return
	}
	httpx.RedirectWithFlash(w, r, "/items", shared.FlashSuccess, "Item updated successfully")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), p.Token, chi.URLParam(r, "id")); err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("delete item", slog.Any("error", err))
		httpx.RedirectWithFlash(w, r, "/items", shared.FlashError, backend.Message(err, "Failed to delete item"))
		return
	}
	httpx.RedirectWithFlash(w, r, "/items", shared.FlashSuccess, "Item deleted successfully")
}

func (h *Handler) importItems(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		httpx.RedirectWithFlash(w, r, "/items", shared.FlashError, "Please choose a file to import")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RedirectWithFlash(w, r, "/items", shared.FlashError, "Please choose a file to import")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	p, _ := shared.PrincipalFromContext(r.Context())
	res, err := h.service.Import(r.Context(), p.Token, header.Filename, file)
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("import items", slog.Any("error", err))
		httpx.RedirectWithFlash(w, r, "/items", shared.FlashError, backend.Message(err, "Failed to import items"))
		return
	}
	httpx.RedirectWithFlash(w, r, "/items", shared.FlashSuccess, importSummary(res))
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	dl, err := h.service.Export(r.Context(), p.Token)
	if err != nil {
		if auth.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("export items", slog.Any("error", err))
		httpx.RedirectWithFlash(w, r, "/items", shared.FlashError, backend.Message(err, "Failed to export items"))
		return
	}
	defer func() {
		_ = dl.Body.Close()
	}()
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		h.logger.Warn("stream export", slog.Any("error", err))
	}
}

func importSummary(res backend.ImportResult) string {
	msg := fmt.Sprintf("Imported %d items", res.Imported)
	if res.Updated > 0 {
		msg += fmt.Sprintf(", updated %d", res.Updated)
	}
	if res.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d", res.Skipped)
	}
	if n := len(res.Errors); n > 0 {
		msg += fmt.Sprintf(" (%d errors: %s)", n, res.Errors[0])
	}
	return msg
}

// mutationFailed re-renders the form with the backend detail, keeping the typed values.
func (h *Handler) mutationFailed(w http.ResponseWriter, r *http.Request, err error, tpl, title string, form itemForm, fallback string) {
	if auth.HandleUnauthorized(w, r, err) {
		return
	}
	h.logger.Error("save item", slog.Any("error", err))
	h.render(w, r, tpl, title, formPageData{Form: form, Errors: httpx.FormErrors{"general": backend.Message(err, fallback)}}, httpx.StatusFor(err))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tpl, title string, data any, status int) {
	if err := h.templates.RenderStatus(w, status, tpl, view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", tpl))
	}
}
