package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/httpx"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	onLogout       []func(sessionID string)
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// OnLogout registers fn to run with the session id of every user who logs out.
func (h *Handler) OnLogout(fn func(sessionID string)) {
	h.onLogout = append(h.onLogout, fn)
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors httpx.FormErrors
}

var loginLabels = map[string]string{"Username": "Username", "Password": "Password"}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	errs := httpx.ValidationErrors(h.validator.Struct(form), loginLabels)

	status := http.StatusBadRequest
	if len(errs) == 0 {
		principal, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
		switch {
		case err == nil:
			if err := Save(sess, principal); err != nil {
				h.logger.Error("save principal", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Welcome, " + principal.Username})
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		case errors.Is(err, backend.ErrInvalidCredentials):
			errs["general"] = backend.Message(err, "Invalid username or password")
		default:
			h.logger.Error("login", slog.Any("error", err))
			errs["general"] = "Unable to log in right now. Please try again."
			status = http.StatusBadGateway
		}
	}

	form.Password = ""
	h.render(w, r, status, loginPageData{Form: form, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		for _, fn := range h.onLogout {
			fn(sess.ID)
		}
		sess.Clear()
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	if err := h.templates.RenderStatus(w, status, "pages/login.html", view.Page(r, h.csrfManager, "Login", data)); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}
