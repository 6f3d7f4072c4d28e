// Package requesttime pins one clock reading per request so every audit
// event written while serving it carries the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"eduverify/pkg/requestcontext"
)

// Middleware stamps requests with time.Now.
var Middleware = WithClock(time.Now)

// WithClock stamps requests with now().UTC().
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), now().UTC())))
		})
	}
}
