package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"webcoder/pkg/errors"
)

// TokenPair is the login response.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Profile is the authenticated user as returned by /users/me/.
type Profile struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email,omitempty"`
	Role     string          `json:"role,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// Login exchanges a username and password for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	var pair TokenPair
	if strings.TrimSpace(username) == "" {
		return pair, errors.ValidationError("username", "is required")
	}
	if password == "" {
		return pair, errors.ValidationError("password", "is required")
	}
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     tokenPath,
		body:     map[string]string{"username": username, "password": password},
		resource: resAuth,
	}, &pair)
	if err != nil {
		return pair, err
	}
	if pair.Access == "" {
		return pair, errors.New(errors.TokenInvalid).WithMessage("login response carried no access token")
	}
	return pair, nil
}

// Refresh trades a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refresh string) (TokenPair, error) {
	var pair TokenPair
	if refresh == "" {
		return pair, errors.New(errors.TokenMissing).WithMessage("no refresh token stored")
	}
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     tokenRefresh,
		body:     map[string]string{"refresh": refresh},
		resource: resAuth,
	}, &pair)
	if err != nil {
		return pair, err
	}
	if pair.Access == "" {
		return pair, errors.New(errors.TokenInvalid).WithMessage("refresh response carried no access token")
	}
	return pair, nil
}

// Me reads the current user's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     mePath,
		auth:     true,
		resource: resUser,
	}, &raw)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, errors.Wrap(err, errors.DecodeFailed)
	}
	p.Raw = raw
	return p, nil
}
