package auth

import (
	"net/url"

	"storesdk/model"
)

// AutoLoginURL builds the handoff URL that consumes a one-time token and
// logs the bearer in, e.g. for opening a link in a fresh browser context.
// tracking values are stringified per query conventions: booleans and
// numbers as literal text, strings percent-encoded. Pure string building;
// no network call.
func (s *Service) AutoLoginURL(oneTimeToken, redirect string, tracking map[string]any) string {
	q := url.Values{}
	q.Set("token", oneTimeToken)
	if redirect != "" {
		q.Set("redirect", redirect)
	}
	for key, value := range tracking {
		if value == nil {
			continue
		}
		q.Set(key, model.QueryValue(value))
	}
	return s.pipe.BaseURL() + s.path("/autologin") + "?" + q.Encode()
}
