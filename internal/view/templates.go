// Package view renders the embedded HTML templates.
package view

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        string
	Data        any
}

var printer = message.NewPrinter(language.English)

// Money formats an amount in rupees with English digit grouping and two decimals.
func Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "₹" + printer.Sprint(number.Decimal(v, number.Scale(2)))
}

// FormatDate renders a timestamp in the shop's display format. Zero values render empty.
func FormatDate(v any) string {
	var t time.Time
	switch ts := v.(type) {
	case time.Time:
		t = ts
	case backend.Timestamp:
		t = ts.Time
	case *backend.Timestamp:
		if ts == nil {
			return ""
		}
		t = ts.Time
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04")
}

func deref(v any) string {
	switch s := v.(type) {
	case *string:
		if s == nil {
			return ""
		}
		return *s
	case string:
		return s
	default:
		return ""
	}
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"money":      Money,
		"formatDate": FormatDate,
		"deref":      deref,
		"upper":      strings.ToUpper,
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"formatInput": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcs()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderStatus writes status and executes a named template.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// Page assembles the TemplateData for a full page render: it pops the pending flash,
// ensures a CSRF token and stamps the logged-in username.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if csrf != nil && sess != nil {
		td.CSRFToken, _ = csrf.EnsureToken(sess)
	}
	td.Flash = sess.PopFlash()
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		td.User = p.Username
	}
	return td
}

// Fragment assembles TemplateData for a partial render. Pending flashes are left
// for the next full page.
func Fragment(r *http.Request, csrf *shared.CSRFManager, data any) TemplateData {
	td := TemplateData{CurrentPath: r.URL.Path, Data: data}
	if sess := shared.SessionFromContext(r.Context()); csrf != nil && sess != nil {
		td.CSRFToken, _ = csrf.EnsureToken(sess)
	}
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		td.User = p.Username
	}
	return td
}
