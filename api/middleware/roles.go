package middleware

import (
	"net/http"

	"github.com/angelmondragon/retaildesk/api/responses"
	"github.com/angelmondragon/retaildesk/internal/access"
	"github.com/angelmondragon/retaildesk/pkg/logger"
)

// RequireAccess rejects actors whose role may not open the dashboard route.
func RequireAccess(route access.Route, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := access.Require(RoleFromContext(r.Context()), route); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
