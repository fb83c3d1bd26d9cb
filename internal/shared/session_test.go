package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "sessionsecret", time.Hour, false), mr
}

func roundTrip(t *testing.T, sm *SessionManager, cookie *http.Cookie, fn func(*Session)) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	fn(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestSessionPersistsValuesAndFlashes(t *testing.T) {
	sm, _ := newTestManager(t)

	cookie := roundTrip(t, sm, nil, func(s *Session) {
		s.Set("k", "v")
		require.NoError(t, s.SetJSON("principal", Principal{Username: "VVR", Token: "tok"}))
		s.AddFlash(FlashMessage{Kind: FlashSuccess, Message: "saved"})
	})

	roundTrip(t, sm, cookie, func(s *Session) {
		assert.Equal(t, "v", s.Get("k"))
		var p Principal
		ok, err := s.GetJSON("principal", &p)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "VVR", p.Username)
		flash := s.PopFlash()
		require.NotNil(t, flash)
		assert.Equal(t, "saved", flash.Message)
	})

	roundTrip(t, sm, cookie, func(s *Session) {
		assert.Nil(t, s.PopFlash(), "flash shown once")
	})
}

func TestUnknownCookieGetsFreshID(t *testing.T) {
	sm, _ := newTestManager(t)
	cookie := roundTrip(t, sm, &http.Cookie{Name: "test_session", Value: "attacker-chosen"}, func(s *Session) {})
	assert.NotEqual(t, "attacker-chosen", cookie.Value)
}

func TestDestroyRemovesSession(t *testing.T) {
	sm, mr := newTestManager(t)
	var id string
	cookie := roundTrip(t, sm, nil, func(s *Session) {
		id = s.ID
		s.Set("k", "v")
	})
	require.True(t, mr.Exists("shopfront:session:"+id))
	assert.Equal(t, sm.CookieValue(id), cookie.Value)

	cleared := roundTrip(t, sm, cookie, func(s *Session) { sm.Destroy(s) })
	assert.Equal(t, -1, cleared.MaxAge)
	assert.False(t, mr.Exists("shopfront:session:"+id))
}

func TestForgedSignatureGetsFreshSession(t *testing.T) {
	sm, _ := newTestManager(t)
	var id string
	roundTrip(t, sm, nil, func(s *Session) {
		id = s.ID
		s.Set("k", "v")
	})

	other := NewSessionManager(nil, "test_session", "othersecret", time.Hour, false)
	roundTrip(t, sm, &http.Cookie{Name: "test_session", Value: other.CookieValue(id)}, func(s *Session) {
		assert.NotEqual(t, id, s.ID)
		assert.Empty(t, s.Get("k"))
	})
	roundTrip(t, sm, &http.Cookie{Name: "test_session", Value: id}, func(s *Session) {
		assert.NotEqual(t, id, s.ID, "unsigned id")
	})
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	sm, _ := newTestManager(t)
	csrf := NewCSRFManager("secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	_, err = csrf.EnsureToken(nil)
	assert.ErrorIs(t, err, ErrSessionMissing)
}

func TestPrincipalValidity(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, Principal{}.Valid(now))
	assert.True(t, Principal{Token: "t"}.Valid(now))
	assert.True(t, Principal{Token: "t", ExpiresAt: now.Add(time.Minute)}.Valid(now))
	assert.False(t, Principal{Token: "t", ExpiresAt: now}.Valid(now))
}
