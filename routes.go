package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(b backend) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestMiddleware)

	// Health check endpoint for Docker
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Accounts
	limit := authRateLimiter()
	r.Handle("/register", limit(registerHandler(b))).Methods(http.MethodPost)
	r.Handle("/login", limit(loginHandler(b))).Methods(http.MethodPost)
	r.HandleFunc("/me", authenticate(meHandler(b))).Methods(http.MethodGet)

	// Profiles
	r.HandleFunc("/me/profile", authenticate(getMyProfileHandler(b))).Methods(http.MethodGet)
	r.HandleFunc("/me/profile", authenticate(updateMyProfileHandler(b))).Methods(http.MethodPut)
	r.HandleFunc("/users/{id:[0-9]+}/profile", authenticate(userProfileHandler(b))).Methods(http.MethodGet)
	r.HandleFunc("/browse", authenticate(browseHandler(b))).Methods(http.MethodGet)

	// Saved profiles
	r.HandleFunc("/profiles/{id:[0-9]+}/save", authenticate(toggleSaveHandler(b))).Methods(http.MethodPost)
	r.Handle("/saved", DataLoaderMiddleware(b)(authenticate(savedHandler(b)))).Methods(http.MethodGet)

	// Matching
	r.HandleFunc("/matches", authenticate(matchesHandler(b))).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id:[0-9]+}/score", authenticate(scoreHandler(b))).Methods(http.MethodGet)

	// Photo reveal / contact share requests
	r.HandleFunc("/requests/{kind}/{user_id:[0-9]+}", authenticate(sendRequestHandler(b))).Methods(http.MethodPost)
	r.HandleFunc("/requests/{kind}/{request_id:[0-9]+}/{action:accept|decline}", authenticate(respondRequestHandler(b))).Methods(http.MethodPost)

	// Notifications
	r.HandleFunc("/notifications", authenticate(notificationsHandler(b))).Methods(http.MethodGet)
	r.HandleFunc("/notifications/count", authenticate(notificationCountHandler(b))).Methods(http.MethodGet)
	r.HandleFunc("/ws/notifications", wsNotificationsHandler(b)).Methods(http.MethodGet)

	return r
}
