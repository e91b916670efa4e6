package middleware

import (
	"net/http"

	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/ctxkeys"
)

// Config exposes the sanitized config to handlers.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	public := cfg.Sanitized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), public)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
