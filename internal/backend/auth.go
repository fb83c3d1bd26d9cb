package backend

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a bearer token and the user profile.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	payload := map[string]string{"username": username, "password": password}
	var out LoginResult
	if err := c.doJSON(ctx, opLogin, http.MethodPost, "/api/auth/login", "", payload, &out); err != nil {
		return LoginResult{}, err
	}
	if out.AccessToken == "" {
		return LoginResult{}, &APIError{Op: opLogin, Status: http.StatusBadGateway, Detail: "login response carried no token"}
	}
	return out, nil
}

// Verify checks that token is still accepted and returns its user.
func (c *Client) Verify(ctx context.Context, token string) (UserProfile, error) {
	var out struct {
		User  string `json:"user"`
		Valid bool   `json:"valid"`
	}
	if err := c.doJSON(ctx, opVerify, http.MethodGet, "/api/auth/verify", token, nil, &out); err != nil {
		return UserProfile{}, err
	}
	if !out.Valid {
		return UserProfile{}, &APIError{Op: opVerify, Status: http.StatusUnauthorized, Detail: "token rejected"}
	}
	return UserProfile{Username: out.User}, nil
}
