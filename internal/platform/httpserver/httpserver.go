package httpserver

import (
	"net/http"
	"time"
)

// New builds the admin API server. Header reads are bounded so a stalled
// client cannot pin a connection; request bodies are small JSON payloads and
// need no further limits here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
