package testutil

import (
	"net/http"
	"time"

	id "pehchan/pkg/domain"
	"pehchan/pkg/requestcontext"
)

// WithUserID stamps the request context the way the auth middleware would for
// an authenticated caller. Invalid ids are silently ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
