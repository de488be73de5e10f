package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/observability"
)

// Recovery turns handler panics into 500 responses instead of dropped
// connections.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.FromContext(r.Context()).
					WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					WithField("path", r.URL.Path).
					Error("PANIC recovered in handler")
				httputil.WriteInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
