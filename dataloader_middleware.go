package main

import (
	"net/http"
)

// DataLoaderMiddleware gives every request its own loaders so cached entries
// never outlive the request.
func DataLoaderMiddleware(b backend) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(b))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
