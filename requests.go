package main

import (
	"context"
	"net/http"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func kindFromPath(r *http.Request) (store.Kind, bool) {
	return store.ParseKind(mux.Vars(r)["kind"])
}

// POST /requests/{kind}/{user_id}
//   - Self -> 400 invalid_target.
//   - Unknown target -> 404.
//   - An existing request is returned as-is with 200, a new one with 201.
func sendRequestHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := kindFromPath(r)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown_request_kind")
			return
		}
		targetID, ok := pathID(r, "user_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		me := currentUserID(r)
		if targetID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		req, created, err := b.SendRequest(r.Context(), kind, me, targetID)
		if err != nil {
			writeStoreError(w, r, err, "send request")
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
			DisclosureRequestsTotal.WithLabelValues(string(kind), "send").Inc()
			requestLogger(r).Info("disclosure requested",
				zap.String("kind", string(kind)), zap.Int("from", me), zap.Int("to", targetID))
			pushNotificationCount(r.Context(), b, targetID)
		}
		writeJSON(w, status, req)
	}
}

// POST /requests/{kind}/{request_id}/{accept|decline}
// Only the requestee may answer. Repeating an answer is idempotent, reversing
// one is 409 invalid_state.
func respondRequestHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := kindFromPath(r)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown_request_kind")
			return
		}
		requestID, ok := pathID(r, "request_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request_id")
			return
		}
		action := mux.Vars(r)["action"]
		accept := action == "accept"
		me := currentUserID(r)

		req, err := b.RespondToRequest(r.Context(), kind, requestID, me, accept)
		if err != nil {
			writeStoreError(w, r, err, "respond to request")
			return
		}

		DisclosureRequestsTotal.WithLabelValues(string(kind), action).Inc()
		requestLogger(r).Info("disclosure answered",
			zap.String("kind", string(kind)), zap.Int("request_id", requestID), zap.String("status", req.Status))

		pushNotificationCount(r.Context(), b, req.RequesterID)
		pushNotificationCount(r.Context(), b, me)
		writeJSON(w, http.StatusOK, req)
	}
}

// pushNotificationCount sends the current count to every open socket of
// userID. Failures only get logged; clients can always poll the count.
func pushNotificationCount(ctx context.Context, b backend, userID int) {
	if !notificationHub.connected(userID) {
		return
	}
	count, err := b.NotificationCount(ctx, userID)
	if err != nil {
		appLogger.Warn("notification count for push", zap.Int("user_id", userID), zap.Error(err))
		return
	}
	notificationHub.sendToUser(userID, ServerEvent{Type: "notification_count", Data: count})
}
