// Package requesttime pins one "now" per request, so the history timestamp,
// the archive name and the generation-date token agree.
package requesttime

import (
	"net/http"
	"time"

	"sitegen/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), time.Now())))
	})
}
