package httpx

import (
	"errors"
	"net/http"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/shared"
)

// FragmentHeader is set by the page scripts on requests that swap HTML fragments.
const FragmentHeader = "X-Requested-With"

// IsFragment reports whether r was issued by a page script rather than a navigation.
func IsFragment(r *http.Request) bool {
	return r.Header.Get(FragmentHeader) == "fetch"
}

// RedirectWithFlash queues a flash on the request session and redirects with 303.
func RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// StatusFor picks the response status for a failed backend call: client errors the
// user can fix become 400, everything else 502.
func StatusFor(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
