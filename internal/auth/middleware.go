package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/httpx"
	"github.com/shopbill/shopfront/internal/shared"
)

// LoginPath is where anonymous requests are sent.
const LoginPath = "/auth/login"

const expiredMessage = "Your session has expired. Please log in again."

// Attach loads the persisted principal into the request context. An expired
// credential is dropped from the session and the request continues anonymously.
func Attach(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.Get(shared.PrincipalSessionKey) == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := Load(sess, now())
			if !ok {
				Clear(sess)
				sess.AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: expiredMessage})
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireUser rejects anonymous requests: navigations are redirected to the login
// page, fragment requests get a 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			toLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Expire handles a backend 401 raised mid-request: the session is emptied, which
// drops the credential and any draft state, and the user is sent to log in again.
func Expire(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Clear()
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: expiredMessage})
	}
	toLogin(w, r)
}

// HandleUnauthorized calls Expire when err is a backend 401 and reports whether it did.
func HandleUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil || !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	Expire(w, r)
	return true
}

func toLogin(w http.ResponseWriter, r *http.Request) {
	if httpx.IsFragment(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
