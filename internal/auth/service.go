package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopbill/shopfront/internal/backend"
)

// Backend is the subset of the remote API used to authenticate.
type Backend interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
	Verify(ctx context.Context, token string) (backend.UserProfile, error)
}

// Service turns backend logins into principals.
type Service struct {
	api         Backend
	logger      *slog.Logger
	fallbackTTL time.Duration
	now         func() time.Time
}

// NewService constructs a Service. fallbackTTL bounds principals whose token carries no expiry.
func NewService(api Backend, logger *slog.Logger, fallbackTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, logger: logger, fallbackTTL: fallbackTTL, now: time.Now}
}

// Authenticate exchanges credentials for a principal. A rejected login returns an
// error matching backend.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		return Principal{}, err
	}
	token := res.AccessToken
	if token == "" {
		return Principal{}, errors.New("auth: empty access token")
	}

	p := Principal{Username: res.User.Username, Token: token}
	claims, ok := tokenClaims(token)
	if ok && claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	} else if s.fallbackTTL > 0 {
		p.ExpiresAt = s.now().Add(s.fallbackTTL)
	}

	if p.Username == "" {
		profile, err := s.api.Verify(ctx, token)
		switch {
		case err == nil:
			p.Username = profile.Username
		case errors.Is(err, backend.ErrUnauthorized):
			return Principal{}, err
		default:
			s.logger.Warn("verify token", slog.Any("error", err))
		}
	}
	if p.Username == "" && ok {
		p.Username = claims.Subject
	}
	if p.Username == "" {
		p.Username = strings.TrimSpace(username)
	}
	return p, nil
}
