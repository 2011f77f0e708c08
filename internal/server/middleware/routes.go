package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/accounts/internal/server/handlers"
)

// Router is a mux that reports the pattern matching a request, as
// *http.ServeMux does
type Router interface {
	http.Handler
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// JSONRouteErrors serves router, answering requests without a matching
// route (404, or 405 with Allow) with a categorized JSON error instead of
// the mux's plain text.
func JSONRouteErrors(router Router, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallback, pattern := router.Handler(r)
		if pattern != "" {
			router.ServeHTTP(w, r)
			return
		}

		rec := &discardWriter{header: make(http.Header), status: http.StatusNotFound}
		fallback.ServeHTTP(rec, r)

		if allow := rec.header.Get("Allow"); allow != "" {
			w.Header().Set("Allow", allow)
		}
		handlers.WriteError(w, logger, strings.ToLower(http.StatusText(rec.status)), rec.status)
	})
}

// discardWriter keeps the status and headers of a response and drops its body
type discardWriter struct {
	header http.Header
	status int
}

func (d *discardWriter) Header() http.Header { return d.header }

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (d *discardWriter) WriteHeader(status int) { d.status = status }
