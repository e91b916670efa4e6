package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/goalnest/goalnest/internal/ctxkeys"
	"github.com/goalnest/goalnest/internal/model"
)

// ProfileLoader is satisfied by the profile service.
type ProfileLoader interface {
	Profile(ctx context.Context) (*model.Profile, error)
}

// Profile puts this installation's profile into the request context.
func Profile(profiles ProfileLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, err := profiles.Profile(r.Context())
			if err != nil {
				slog.Error("failed to load profile", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := ctxkeys.WithProfile(r.Context(), profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
