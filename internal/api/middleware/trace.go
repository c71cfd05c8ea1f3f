package middleware

import (
	"net/http"

	"github.com/cadence-learn/cadence-api/internal/api/shared"
)

// TraceMiddleware assigns a trace ID to every request and echoes it back
// in the X-Trace-ID header so failures can be correlated with logs.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		w.Header().Set("X-Trace-ID", shared.GetTraceID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
