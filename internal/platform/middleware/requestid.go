package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rauletepaz/account-verifactu/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request id to the context, honoring one supplied by
// the caller so ids survive across service hops.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
