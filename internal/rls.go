package internal

import (
	"net/http"

	"envanter/internal/auth"
	"envanter/internal/store"
)

// withRLSSession pins a connection scoped to the calling user for the
// lifetime of the request, so row-level security policies see who is asking.
func withRLSSession(binder store.SessionBinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserIDFromContext(r.Context())
			ctx, release, err := binder.BindUser(r.Context(), userID)
			if err != nil {
				auth.SendErrorResponse(w, "db acquire failed", "DB_UNAVAILABLE", http.StatusServiceUnavailable)
				return
			}
			defer release()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
