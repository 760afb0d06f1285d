package main

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// The backend needs Cross-Origin Resource Sharing to work with the frontend
// in browsers. Allowed origins come from configuration.

var allowedOrigins = []string{"http://localhost:5173", "http://localhost:3001"}

func withCORS(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(next)
}

// originAllowed is the websocket counterpart of the CORS check. Requests
// without an Origin header come from non-browser clients.
func originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
}
