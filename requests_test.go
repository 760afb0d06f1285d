package main

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// DISCLOSURE REQUESTS TEST SUITE
// ============================================================================

func TestRequestsSuite(t *testing.T) {
	t.Run("Lifecycle", testRequestLifecycle)
	t.Run("Rejections", testRequestRejections)
	t.Run("NotificationSocket", testNotificationSocket)
}

func sendPath(kind string, target int) string {
	return "/requests/" + kind + "/" + strconv.Itoa(target)
}

func answerPath(kind string, requestID int, action string) string {
	return "/requests/" + kind + "/" + strconv.Itoa(requestID) + "/" + action
}

func notificationCount(t *testing.T, h http.Handler, token string) int {
	t.Helper()
	w := doRequest(t, h, http.MethodGet, "/notifications/count", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decodeBody[map[string]int](t, w)["count"]
}

type notificationsBody struct {
	Incoming []store.IncomingRequest `json:"incoming"`
	Outcomes []store.Outcome         `json:"outcomes"`
}

func testRequestLifecycle(t *testing.T) {
	fake := newFakeBackend()
	h := newRouter(fake)
	alice := fake.addUser(t, "alice", "")
	bob := fake.addUser(t, "bob", "")

	w := doRequest(t, h, http.MethodPost, sendPath("photo_reveal", bob.ID), alice.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sent := decodeBody[store.Request](t, w)
	assert.Equal(t, store.StatusPending, sent.Status)
	assert.Equal(t, alice.ID, sent.RequesterID)

	t.Run("Send Is Idempotent", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, sendPath("photo_reveal", bob.ID), alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, sent.ID, decodeBody[store.Request](t, w).ID)
		assert.Equal(t, 1, notificationCount(t, h, bob.Token))
	})

	t.Run("Requestee Sees Pending", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/notifications", bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody[notificationsBody](t, w)
		require.Len(t, body.Incoming, 1)
		assert.Equal(t, "alice", body.Incoming[0].RequesterUsername)
		assert.Equal(t, store.KindPhotoReveal, body.Incoming[0].Kind)
		assert.Empty(t, body.Outcomes)
		assert.Equal(t, 0, notificationCount(t, h, alice.Token))
	})

	t.Run("Only Requestee Answers", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, answerPath("photo_reveal", sent.ID, "accept"), alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = doRequest(t, h, http.MethodPost, answerPath("contact_share", sent.ID, "accept"), bob.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "ids are scoped to their kind")
	})

	t.Run("Accept", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, answerPath("photo_reveal", sent.ID, "accept"), bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, store.StatusAccepted, decodeBody[store.Request](t, w).Status)

		w = doRequest(t, h, http.MethodPost, answerPath("photo_reveal", sent.ID, "accept"), bob.Token, nil)
		assert.Equal(t, http.StatusOK, w.Code, "repeating the answer is a no-op")

		w = doRequest(t, h, http.MethodGet, "/notifications", alice.Token, nil)
		body := decodeBody[notificationsBody](t, w)
		require.Len(t, body.Outcomes, 1)
		assert.Equal(t, "Your photo reveal request to user "+strconv.Itoa(bob.ID)+" has been accepted.", body.Outcomes[0].Message)
		assert.Equal(t, 1, notificationCount(t, h, alice.Token))
		assert.Equal(t, 0, notificationCount(t, h, bob.Token))
	})

	t.Run("Accept Is Mutual", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/users/"+strconv.Itoa(alice.ID)+"/profile", bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, store.StatusAccepted, decodeBody[publicProfile](t, w).PhotoRevealStatus)
	})

	t.Run("Reversal Rejected", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, answerPath("photo_reveal", sent.ID, "decline"), bob.Token, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"invalid_state"}`, w.Body.String())
	})

	t.Run("Decline", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, sendPath("contact_share", alice.ID), bob.Token, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		req := decodeBody[store.Request](t, w)

		w = doRequest(t, h, http.MethodPost, answerPath("contact_share", req.ID, "decline"), alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, store.StatusDeclined, decodeBody[store.Request](t, w).Status)

		w = doRequest(t, h, http.MethodGet, "/users/"+strconv.Itoa(alice.ID)+"/profile", bob.Token, nil)
		p := decodeBody[publicProfile](t, w)
		assert.Equal(t, store.StatusDeclined, p.ContactShareStatus)
		assert.Nil(t, p.Contacts)
	})
}

func testRequestRejections(t *testing.T) {
	fake := newFakeBackend()
	h := newRouter(fake)
	alice := fake.addUser(t, "alice", "")

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedError  string
	}{
		{"Unknown Kind", sendPath("wink", 2), http.StatusNotFound, "unknown_request_kind"},
		{"Self", sendPath("photo_reveal", alice.ID), http.StatusBadRequest, "invalid_target"},
		{"Unknown Target", sendPath("photo_reveal", 999), http.StatusNotFound, "not_found"},
		{"Unknown Request", answerPath("photo_reveal", 999, "accept"), http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPost, tt.path, alice.Token, nil)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedError, decodeBody[map[string]string](t, w)["error"])
		})
	}

	t.Run("Unauthenticated", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, sendPath("photo_reveal", alice.ID), "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func testNotificationSocket(t *testing.T) {
	fake := newFakeBackend()
	server := httptest.NewServer(newRouter(fake))
	defer server.Close()
	alice := fake.addUser(t, "alice", "")
	bob := fake.addUser(t, "bob", "")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/notifications"

	t.Run("Rejects Missing Token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Pushes Count", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+bob.Token, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var evt ServerEvent
		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, "notification_count", evt.Type)
		assert.Equal(t, 0.0, evt.Data)

		req, err := http.NewRequest(http.MethodPost, server.URL+sendPath("photo_reveal", bob.ID), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+alice.Token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, "notification_count", evt.Type)
		assert.Equal(t, 1.0, evt.Data)
	})
}
