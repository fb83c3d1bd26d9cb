package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shopbill/shopfront/internal/shared"
)

// Principal is the logged-in user carried through request contexts.
type Principal = shared.Principal

// Load reads the persisted principal from the session. Absent, undecodable or
// expired credentials yield false.
func Load(sess *shared.Session, now time.Time) (Principal, bool) {
	if sess == nil {
		return Principal{}, false
	}
	var p Principal
	ok, err := sess.GetJSON(shared.PrincipalSessionKey, &p)
	if err != nil || !ok {
		return Principal{}, false
	}
	if !p.Valid(now) {
		return Principal{}, false
	}
	return p, true
}

// Save persists p into the session.
func Save(sess *shared.Session, p Principal) error {
	if sess == nil {
		return shared.ErrSessionMissing
	}
	return sess.SetJSON(shared.PrincipalSessionKey, p)
}

// Clear removes the persisted principal.
func Clear(sess *shared.Session) {
	if sess != nil {
		sess.Delete(shared.PrincipalSessionKey)
	}
}

// tokenClaims decodes the registered claims of a bearer token without verifying its
// signature. Only exp and sub are read.
func tokenClaims(token string) (*jwt.RegisteredClaims, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
