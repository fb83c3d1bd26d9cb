package view

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "₹0.00", Money(0))
	assert.Equal(t, "₹240.00", Money(240))
	assert.Equal(t, "₹1,234.50", Money(1234.5))
	assert.Equal(t, "-₹50.00", Money(-50))
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, "01 Mar 2025 10:15", FormatDate(ts))
	assert.Equal(t, "01 Mar 2025 10:15", FormatDate(backend.Timestamp{Time: ts}))
	assert.Equal(t, "", FormatDate((*backend.Timestamp)(nil)))
	assert.Equal(t, "", FormatDate(time.Time{}))
}

func TestLoginPageRenders(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/login.html", TemplateData{Title: "Login", CSRFToken: "tok"})
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), "<form")
	assert.Contains(t, rec.Body.String(), `value="tok"`)
}

func TestPageStampsUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{Username: "VVR", Token: "t"})
	td := Page(req.WithContext(ctx), nil, "Items", nil)
	assert.Equal(t, "VVR", td.User)
	assert.Equal(t, "/items", td.CurrentPath)
	assert.Nil(t, td.Flash)
}
