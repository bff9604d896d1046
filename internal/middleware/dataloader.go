package middleware

import (
	"net/http"

	"github.com/rpattn/polyrel/internal/entityloader"
	"github.com/rpattn/polyrel/internal/repository"
)

// DataLoaderMiddleware attaches a request-scoped pointer loader to the request context
func DataLoaderMiddleware(repo repository.DocumentRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := entityloader.NewEntityLoader(repo)
			ctx := entityloader.NewContext(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
