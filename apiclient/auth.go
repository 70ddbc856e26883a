package apiclient

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/state"
	"github.com/MrEthical07/goAuthClient/token"
)

// LoginRequest is the credential payload of the login endpoint.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse is the body returned by a successful login.
type LoginResponse struct {
	User   *state.User `json:"user"`
	Tokens token.Pair  `json:"tokens"`
}

// Login exchanges credentials for a token pair and persists it. The call is
// never intercepted: a 401 here means bad credentials, not an expired session.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResponse, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.LoginPath, LoginRequest{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.bare.Do(req)
	if err != nil {
		return nil, transportError(err)
	}

	var out LoginResponse
	if err := DecodeJSON(resp, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized:
				apiErr.withKind(ErrUnauthorized)
			case http.StatusTooManyRequests:
				apiErr.withKind(ErrRateLimited)
			}
		}
		return nil, err
	}

	if !out.Tokens.Empty() {
		if err := c.store.Save(ctx, out.Tokens); err != nil {
			return nil, err
		}
	}
	c.logger.Debug("logged in",
		zap.String("access_token", token.Fingerprint(out.Tokens.AccessToken)),
	)
	return &out, nil
}

// Logout notifies the server and clears local credentials. Server failures are
// logged and ignored; the local session always ends.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.LogoutPath, nil)
	if err == nil {
		var resp *http.Response
		resp, err = c.http.Do(req)
		if err == nil {
			err = DecodeJSON(resp, nil)
		}
	}
	if err != nil {
		c.logger.Info("server logout failed", zap.Error(err))
	}

	return c.store.Clear(ctx)
}

// CurrentUser fetches the signed-in user through the refreshing path.
func (c *Client) CurrentUser(ctx context.Context) (*state.User, error) {
	resp, err := c.Get(ctx, c.cfg.CurrentUserPath)
	if err != nil {
		return nil, err
	}

	var user state.User
	if err := DecodeJSON(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
