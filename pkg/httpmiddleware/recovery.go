package httpmiddleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery catches handler panics, logs them with a stack trace, and
// answers with the same notice shape the API handlers use, so the
// operator surface renders a toast instead of choking on plain text.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					zctx.From(r.Context()).Error("panic recovered",
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					w.Header().Set("Connection", "close")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"title":    "Unexpected Error",
						"message":  "Something went wrong. Try again.",
						"severity": "error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
