package main

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinels to status codes and logs anything else.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, store.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state")
	case errors.Is(err, store.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_exists")
	default:
		requestLogger(r).Error(msg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// pathID reads a numeric route variable.
func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// shuffle is swapped out in tests to get a deterministic order.
var shuffle = func(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}
