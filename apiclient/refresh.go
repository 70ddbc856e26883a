package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/token"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Tokens token.Pair `json:"tokens"`
}

// Refresh obtains a new access token. Concurrent callers share one network
// refresh: the first becomes leader, the rest receive the leader's outcome in
// arrival order.
//
// When the refresh fails the store is cleared and exactly one logout event is
// published, by the leader. Every caller receives an error matching
// [IsSessionTerminated].
func (c *Client) Refresh(ctx context.Context) (string, error) {
	tok, leader, err := c.coord.Do(ctx, c.refreshSession)
	if !leader {
		c.observer.RefreshJoined()
	}
	return tok, err
}

// refreshSession runs as the leader. It is detached from the caller's
// cancellation so one impatient caller cannot fail the whole queue.
func (c *Client) refreshSession(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RefreshTimeout)
	defer cancel()

	start := time.Now()
	tok, err := c.doRefresh(ctx)
	c.observer.RefreshFinished(time.Since(start), err)
	return tok, err
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	refreshToken, err := c.store.RefreshToken(ctx)
	if err != nil {
		c.logger.Warn("refresh token read failed", zap.Error(err))
		refreshToken = ""
	}
	if !c.usableRefreshToken(refreshToken) {
		c.terminate(ctx, events.ReasonAuthenticationRequired)
		return "", ErrAuthenticationRequired
	}

	pair, err := c.postRefresh(ctx, refreshToken)
	if err != nil {
		c.logger.Info("session refresh failed",
			zap.String("refresh_token", token.Fingerprint(refreshToken)),
			zap.Error(err),
		)
		c.terminate(ctx, events.ReasonSessionExpired)
		return "", fmt.Errorf("%w: %w", ErrRefreshRejected, err)
	}

	// An empty body means the server rotated the pair through Set-Cookie.
	if !pair.Empty() {
		if err := c.store.Save(ctx, pair); err != nil {
			c.logger.Warn("persisting refreshed tokens failed", zap.Error(err))
		}
	}

	access := pair.AccessToken
	if access == "" {
		access, _ = c.store.AccessToken(ctx)
	}
	c.logger.Debug("session refreshed", zap.String("access_token", token.Fingerprint(access)))
	return access, nil
}

func (c *Client) usableRefreshToken(t string) bool {
	if t == "" {
		return false
	}
	if c.cfg.OpaqueRefreshTokens {
		return true
	}
	return c.validator.Validate(t)
}

func (c *Client) postRefresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.RefreshPath, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return token.Pair{}, err
	}

	resp, err := c.bare.Do(req)
	if err != nil {
		return token.Pair{}, transportError(err)
	}

	var out refreshResponse
	if err := DecodeJSON(resp, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			apiErr.withKind(ErrUnauthorized)
		}
		return token.Pair{}, err
	}
	return out.Tokens, nil
}

// terminate clears credentials and broadcasts the session end.
func (c *Client) terminate(ctx context.Context, reason events.Reason) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("clearing credentials failed", zap.Error(err))
	}
	c.observer.SessionTerminated(reason)
	c.bus.Publish(ctx, reason)
}
