package main

import (
	"net/http"
	"strconv"
	"testing"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedIDs(t *testing.T, h http.Handler, token string) []int {
	t.Helper()
	w := doRequest(t, h, http.MethodGet, "/saved", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ids := []int{}
	for _, item := range decodeBody[[]savedItem](t, w) {
		ids = append(ids, item.ID)
	}
	return ids
}

func toggle(t *testing.T, h http.Handler, token string, target int) map[string]interface{} {
	t.Helper()
	w := doRequest(t, h, http.MethodPost, "/profiles/"+strconv.Itoa(target)+"/save", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[map[string]interface{}](t, w)
}

func TestSavedSuite(t *testing.T) {
	fake := newFakeBackend()
	h := newRouter(fake)
	alice := fake.addUser(t, "alice", "")
	bob := fake.addUser(t, "bob", "likes cats")
	carol := fake.addUser(t, "carol", "")
	dave := fake.addUser(t, "dave", "")
	fake.photos[bob.ID] = []string{"bob_1.jpg", "bob_2.jpg"}

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, []int{}, savedIDs(t, h, alice.Token))
	})

	t.Run("Toggle Once Adds", func(t *testing.T) {
		body := toggle(t, h, alice.Token, bob.ID)
		assert.Equal(t, true, body["saved"])
		assert.Equal(t, "Profile saved successfully", body["message"])
		assert.Equal(t, []int{bob.ID}, savedIDs(t, h, alice.Token))

		w := doRequest(t, h, http.MethodGet, "/saved", alice.Token, nil)
		items := decodeBody[[]savedItem](t, w)
		require.Len(t, items, 1)
		assert.Equal(t, "bob_1.jpg", items[0].Photo)
		assert.Equal(t, "likes cats", items[0].About)
	})

	t.Run("Toggle Twice Restores", func(t *testing.T) {
		body := toggle(t, h, alice.Token, bob.ID)
		assert.Equal(t, false, body["saved"])
		assert.Equal(t, "Profile unsaved successfully", body["message"])
		assert.Equal(t, []int{}, savedIDs(t, h, alice.Token))
	})

	t.Run("Requests Count As Interest", func(t *testing.T) {
		_, _, err := fake.SendRequest(t.Context(), store.KindPhotoReveal, alice.ID, carol.ID)
		require.NoError(t, err)
		_, _, err = fake.SendRequest(t.Context(), store.KindContactShare, alice.ID, dave.ID)
		require.NoError(t, err)
		toggle(t, h, alice.Token, bob.ID)

		assert.ElementsMatch(t, []int{bob.ID, carol.ID, dave.ID}, savedIDs(t, h, alice.Token))
	})

	t.Run("Save Toggle Never Retracts Requests", func(t *testing.T) {
		toggle(t, h, alice.Token, carol.ID)
		toggle(t, h, alice.Token, carol.ID)
		toggle(t, h, alice.Token, bob.ID)

		assert.ElementsMatch(t, []int{carol.ID, dave.ID}, savedIDs(t, h, alice.Token))
	})

	t.Run("Invalid Targets", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, "/profiles/"+strconv.Itoa(alice.ID)+"/save", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(t, h, http.MethodPost, "/profiles/999/save", alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = doRequest(t, h, http.MethodPost, "/profiles/abc/save", alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "non-numeric ids do not match the route")
	})
}
