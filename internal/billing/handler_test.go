package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/catalog"
	"github.com/shopbill/shopfront/internal/shared"
	"github.com/shopbill/shopfront/internal/view"
	_ "github.com/shopbill/shopfront/testing"
)

type stubItems struct {
	items []backend.Item
}

func (s *stubItems) Search(ctx context.Context, token, query string) ([]backend.Item, error) {
	return catalog.Filter(s.items, query), nil
}

func (s *stubItems) Item(ctx context.Context, token, id string) (backend.Item, error) {
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return backend.Item{}, backend.ErrNotFound
}

type composerFixture struct {
	creator  *stubCreator
	inv      *countingInvalidator
	router   http.Handler
	sessions *shared.SessionManager
	sess     *shared.Session
}

func newComposerFixture(t *testing.T) *composerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	templates, err := view.NewEngine()
	require.NoError(t, err)

	f := &composerFixture{
		creator:  &stubCreator{},
		inv:      &countingInvalidator{},
		sessions: shared.NewSessionManager(client, "s", "sessionsecret", time.Hour, false),
	}
	h := NewHandler(nil, NewService(nil, f.creator, f.inv), &stubItems{items: []backend.Item{switchItem, wireItem}}, templates, shared.NewCSRFManager("secret"))
	r := chi.NewRouter()
	r.Route("/billing", h.MountRoutes)
	f.router = r

	sess, err := f.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	f.sess = sess
	return f
}

// do runs every request against the same in-memory session.
func (f *composerFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	ctx := shared.ContextWithSession(req.Context(), f.sess)
	ctx = shared.ContextWithPrincipal(ctx, shared.Principal{Username: "VVR", Token: "tok"})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func (f *composerFixture) post(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, req)
}

func TestComposerShowsTierPrices(t *testing.T) {
	f := newComposerFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/billing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "₹80.00")

	rec = f.post(t, "/billing/mode", url.Values{"mode": {"carpenter"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/billing?q=switch", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "₹70.00")
	assert.NotContains(t, body, "Wire 1.5mm")
}

func TestComposerLineEditing(t *testing.T) {
	f := newComposerFixture(t)

	rec := f.post(t, "/billing/lines", url.Values{"item_id": {"sw"}, "q": {"sw"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/billing?q=sw", rec.Header().Get("Location"))

	f.post(t, "/billing/lines/0/quantity", url.Values{"quantity": {"3"}})
	draft := LoadDraft(f.sess)
	require.Len(t, draft.Lines, 1)
	assert.Equal(t, 240.0, draft.Lines[0].Subtotal)
	assert.Equal(t, 90.0, draft.Lines[0].Profit)

	f.post(t, "/billing/lines/0/quantity", url.Values{"quantity": {"abc"}})
	assert.Equal(t, 1, LoadDraft(f.sess).Lines[0].Quantity)

	f.post(t, "/billing/lines/0/price", url.Values{"price": {"-5"}})
	assert.Equal(t, 0.0, LoadDraft(f.sess).Lines[0].Price)

	for _, price := range []string{"Inf", "1e400", "NaN"} {
		rec = f.post(t, "/billing/lines/0/price", url.Values{"price": {price}})
		require.Equal(t, http.StatusSeeOther, rec.Code, price)
		assert.Equal(t, 0.0, LoadDraft(f.sess).Lines[0].Price, price)
	}

	f.post(t, "/billing/lines/0/price", url.Values{"price": {"1e308"}})
	rec = f.post(t, "/billing/lines/0/quantity", url.Values{"quantity": {"10"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, ErrAmountTooLarge.Error(), flash.Message)
	assert.Equal(t, 1, LoadDraft(f.sess).Lines[0].Quantity)
	f.post(t, "/billing/lines/0/price", url.Values{"price": {"80"}})

	rec = f.post(t, "/billing/lines/7/remove", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	flash = f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, ErrLineOutOfRange.Error(), flash.Message)
	assert.Len(t, LoadDraft(f.sess).Lines, 1)

	f.post(t, "/billing/lines/0/remove", url.Values{})
	assert.True(t, LoadDraft(f.sess).Empty())
}

func TestComposerUnknownItemFlashes(t *testing.T) {
	f := newComposerFixture(t)
	f.post(t, "/billing/lines", url.Values{"item_id": {"missing"}})
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Item not found", flash.Message)
	assert.True(t, LoadDraft(f.sess).Empty())
}

func TestSubmitEmptyDraftRejectedLocally(t *testing.T) {
	f := newComposerFixture(t)
	rec := f.post(t, "/billing/submit", url.Values{"bill_type": {"paid"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "please add items to the bill")
	assert.Zero(t, f.creator.calls)
}

func TestSubmitCreditNeedsCustomer(t *testing.T) {
	f := newComposerFixture(t)
	f.post(t, "/billing/lines", url.Values{"item_id": {"sw"}})
	rec := f.post(t, "/billing/submit", url.Values{"bill_type": {"credit"}, "amount_paid": {"20"}, "customer_name": {"Ravi"}, "customer_phone": {"  "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, ErrCustomerRequired.Error())
	assert.Contains(t, body, "₹60.00", "remaining balance preview")
	assert.Zero(t, f.creator.calls)
	assert.False(t, LoadDraft(f.sess).Empty())
}

func TestSubmitBackendFailureKeepsDraft(t *testing.T) {
	f := newComposerFixture(t)
	f.creator.err = &backend.APIError{Op: "create_bill", Status: http.StatusInternalServerError, Detail: "database locked"}
	f.post(t, "/billing/lines", url.Values{"item_id": {"sw"}})
	rec := f.post(t, "/billing/submit", url.Values{"bill_type": {"paid"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "database locked")
	assert.Equal(t, 1, f.creator.calls)
	assert.False(t, LoadDraft(f.sess).Empty())
	assert.Zero(t, f.inv.n)
}

func TestSubmitSuccessRedirectsToDashboard(t *testing.T) {
	f := newComposerFixture(t)
	f.post(t, "/billing/lines", url.Values{"item_id": {"sw"}})
	f.post(t, "/billing/lines", url.Values{"item_id": {"wr"}})
	rec := f.post(t, "/billing/submit", url.Values{"bill_type": {"credit"}, "amount_paid": {"50"}, "customer_name": {"Ravi"}, "customer_phone": {"98480"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, 105.0, f.creator.last.TotalAmount)
	assert.Equal(t, 50.0, f.creator.last.AmountPaid)
	assert.Equal(t, 1, f.inv.n)
	assert.Empty(t, f.sess.Get(DraftSessionKey))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, SubmittedMessage, flash.Message)
}

func TestSubmitRejectsUnknownBillType(t *testing.T) {
	f := newComposerFixture(t)
	f.post(t, "/billing/lines", url.Values{"item_id": {"sw"}})
	rec := f.post(t, "/billing/submit", url.Values{"bill_type": {"cash"}, "amount_paid": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bill type is not a valid choice")
	assert.Contains(t, body, "Amount paid must be a number")
	assert.Zero(t, f.creator.calls)
}
