// Package requestid assigns each incoming request a correlation ID.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"educaid/pkg/requestcontext"
)

// Header carries the correlation ID on responses and may be supplied by
// upstream proxies on requests.
const Header = "X-Request-ID"

// Middleware reuses the inbound request ID when present, otherwise generates
// one, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(Header)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		w.Header().Set(Header, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
