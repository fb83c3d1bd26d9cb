package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/cache"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
	_ "github.com/shopbill/shopfront/testing"
)

type fakeStats struct {
	mu    sync.Mutex
	stats map[backend.Period]backend.Stats
	errs  map[backend.Period]error
	calls map[backend.Period]int
}

func (f *fakeStats) Stats(ctx context.Context, token string, period backend.Period) (backend.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[backend.Period]int)
	}
	f.calls[period]++
	if err := f.errs[period]; err != nil {
		return backend.Stats{}, err
	}
	return f.stats[period], nil
}

func (f *fakeStats) count(p backend.Period) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[p]
}

func sampleStats() map[backend.Period]backend.Stats {
	return map[backend.Period]backend.Stats{
		backend.PeriodToday: {Period: backend.PeriodToday, TotalSales: 1200, TotalProfit: 300, OutstandingAmount: 450, BillsCount: 3},
		backend.PeriodWeek:  {Period: backend.PeriodWeek, TotalSales: 8000, TotalProfit: 1900, BillsCount: 21},
		backend.PeriodMonth: {Period: backend.PeriodMonth, TotalSales: 31000, TotalProfit: 7200, BillsCount: 80},
		backend.PeriodYear:  {Period: backend.PeriodYear, TotalSales: 250000, TotalProfit: 61000, BillsCount: 700},
	}
}

func newCachedService(t *testing.T, api Backend) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(api, cache.NewVersioned(client, "dashboard", time.Minute), nil)
}

func TestStatsCachedUntilInvalidated(t *testing.T) {
	api := &fakeStats{stats: sampleStats()}
	svc := newCachedService(t, api)
	ctx := context.Background()

	first, err := svc.Stats(ctx, "tok", backend.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, first.TotalSales)
	_, err = svc.Stats(ctx, "tok", backend.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count(backend.PeriodWeek))

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Stats(ctx, "tok", backend.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count(backend.PeriodWeek))
}

func TestStatsFillsMissingPeriod(t *testing.T) {
	api := &fakeStats{stats: map[backend.Period]backend.Stats{backend.PeriodMonth: {TotalSales: 10}}}
	stats, err := NewService(api, nil, nil).Stats(context.Background(), "tok", backend.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, backend.PeriodMonth, stats.Period)
}

func TestOverviewFetchesEveryPeriod(t *testing.T) {
	api := &fakeStats{stats: sampleStats()}
	overview, err := NewService(api, nil, nil).Overview(context.Background(), "tok", backend.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 31000.0, overview.Stats.TotalSales)
	require.Len(t, overview.Bars, len(backend.Periods))
	assert.Equal(t, Bar{Label: "Today", Sales: 1200, Profit: 300}, overview.Bars[0])
	assert.Equal(t, "Year", overview.Bars[3].Label)
	assert.True(t, strings.HasPrefix(string(overview.Chart), "<svg"))
	for _, p := range backend.Periods {
		assert.Equal(t, 1, api.count(p), p)
	}
}

func TestOverviewFailedPeriodCountsAsZero(t *testing.T) {
	api := &fakeStats{stats: sampleStats(), errs: map[backend.Period]error{backend.PeriodToday: errors.New("timeout")}}
	overview, err := NewService(api, nil, nil).Overview(context.Background(), "tok", backend.PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, backend.Stats{Period: backend.PeriodToday}, overview.Stats)
	assert.Equal(t, 8000.0, overview.Bars[1].Sales)
}

func TestOverviewUnauthorized(t *testing.T) {
	api := &fakeStats{stats: sampleStats(), errs: map[backend.Period]error{backend.PeriodYear: &backend.APIError{Op: "stats", Status: http.StatusUnauthorized}}}
	_, err := NewService(api, nil, nil).Overview(context.Background(), "tok", backend.PeriodToday)
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
}

func TestChart(t *testing.T) {
	html, err := Chart([]Bar{{Label: "Today", Sales: 500, Profit: -50}, {Label: "Week", Sales: 1500, Profit: 320}}, ChartOpts{})
	require.NoError(t, err)
	out := string(html)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Equal(t, 2, strings.Count(out, `class="sales"`))
	assert.Equal(t, 2, strings.Count(out, `class="profit"`))
	assert.Contains(t, out, "1.5k")
	assert.True(t, strings.HasSuffix(out, "</svg>"))

	_, err = Chart(nil, ChartOpts{})
	assert.Error(t, err)
	_, err = Chart([]Bar{{Label: "x"}}, ChartOpts{Width: 40, Height: 40, Padding: 30})
	assert.Error(t, err)
}

func TestChartEscapesLabels(t *testing.T) {
	html, err := Chart([]Bar{{Label: "<b>", Sales: 1}}, ChartOpts{})
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<b>")
	assert.Contains(t, string(html), "&lt;b&gt;")
}

func TestShortAmount(t *testing.T) {
	assert.Equal(t, "0", shortAmount(0))
	assert.Equal(t, "250", shortAmount(250))
	assert.Equal(t, "1.5k", shortAmount(1500))
	assert.Equal(t, "2M", shortAmount(2_000_000))
	assert.Equal(t, "-3k", shortAmount(-3000))
}

func newTestRouter(t *testing.T, api Backend) (http.Handler, *shared.Session) {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, NewService(api, nil, nil), templates, shared.NewCSRFManager("secret"))
	r := chi.NewRouter()
	h.MountRoutes(r)
	sess := &shared.Session{ID: "sess-1"}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := shared.ContextWithSession(req.Context(), sess)
		ctx = shared.ContextWithPrincipal(ctx, shared.Principal{Username: "VVR", Token: "tok"})
		r.ServeHTTP(w, req.WithContext(ctx))
	}), sess
}

func TestDashboardPage(t *testing.T) {
	h, _ := newTestRouter(t, &fakeStats{stats: sampleStats()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "₹1,200.00")
	assert.Contains(t, body, "₹450.00")
	assert.Contains(t, body, "<svg")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?period=year", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "₹250,000.00")
}

func TestDashboardUnknownPeriodFallsBackToToday(t *testing.T) {
	h, _ := newTestRouter(t, &fakeStats{stats: sampleStats()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?period=decade", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "₹1,200.00")
}

func TestDashboardUnauthorized(t *testing.T) {
	api := &fakeStats{errs: map[backend.Period]error{backend.PeriodToday: &backend.APIError{Op: "stats", Status: http.StatusUnauthorized}}}
	h, _ := newTestRouter(t, api)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
}
