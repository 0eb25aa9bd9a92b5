package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"storesdk/model"
)

// refreshCoordinator serializes token refresh across concurrently failing
// requests. However many requests observe a 401 while no refreshed token
// exists yet, exactly one refresh call reaches the server; the rest block
// on the in-flight call and share its outcome, then each replays its own
// original request. Refresh tokens are single-use, so parallel refreshes
// would invalidate each other mid-rotation.
type refreshCoordinator struct {
	group     singleflight.Group
	refresher Refresher
}

// refreshKey is the singleflight key; one SDK instance has one session, so
// one key suffices.
const refreshKey = "session-refresh"

// do runs (or joins) a refresh and returns the new access token. A missing
// refresh token or a rejected rotation is unrecoverable: the session is
// invalidated and every waiting caller receives the same
// refresh_token_failed error.
func (rc *refreshCoordinator) do(ctx context.Context, c *Client) (string, error) {
	v, err, _ := rc.group.Do(refreshKey, func() (any, error) {
		// A refresh runs to completion once started; a half-cancelled
		// rotation would leave the server and client disagreeing about
		// which refresh token is live.
		rctx := context.WithoutCancel(ctx)

		refreshToken, err := rc.refresher.StoredRefreshToken(rctx)
		if err != nil {
			return nil, model.NewTransportError(err)
		}
		if refreshToken == "" {
			rc.invalidate(rctx, c.logger)
			return nil, model.NewRefreshFailedError("no refresh token available", nil)
		}

		accessToken, err := rc.refresher.Refresh(rctx, refreshToken)
		if err != nil {
			rc.invalidate(rctx, c.logger)
			return nil, model.NewRefreshFailedError("token refresh rejected", err)
		}
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (rc *refreshCoordinator) invalidate(ctx context.Context, logger *slog.Logger) {
	if err := rc.refresher.Invalidate(ctx); err != nil {
		logger.Warn("clearing session after failed refresh", slog.Any("error", err))
	}
}
