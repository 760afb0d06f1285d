package main

import (
	"context"
	"net/http"

	"gitea.kood.tech/petrkubec/affinity/matching"
	"go.uber.org/zap"
)

type savedItem struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Location string `json:"location"`
	About    string `json:"about"`
	Photo    string `json:"photo,omitempty"`
}

// explicitSaves returns the profiles me saved with the toggle, without the
// disclosure request targets.
func explicitSaves(ctx context.Context, b backend, me int) (map[int]struct{}, error) {
	ids, err := b.FetchOutbound(ctx, me, matching.RelationSaved)
	if err != nil {
		return nil, err
	}
	return matching.IDSet(ids), nil
}

// POST /profiles/{id}/save
func toggleSaveHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		me := currentUserID(r)
		if targetID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		saved, err := b.ToggleSaved(r.Context(), me, targetID)
		if err != nil {
			writeStoreError(w, r, err, "toggle saved")
			return
		}

		message := "Profile unsaved successfully"
		if saved {
			message = "Profile saved successfully"
		}
		requestLogger(r).Debug("saved toggled",
			zap.Int("user_id", me), zap.Int("target_id", targetID), zap.Bool("saved", saved))
		writeJSON(w, http.StatusOK, map[string]interface{}{"saved": saved, "message": message})
	}
}

// GET /saved lists every profile the caller has shown interest in, whether by
// saving it or by requesting a disclosure.
func savedHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		me := currentUserID(r)

		ids, err := matching.InterestsOf(ctx, b, me)
		if err != nil {
			writeStoreError(w, r, err, "interests")
			return
		}

		users, photos, err := loadProfiles(ctx, ids)
		if err != nil {
			writeStoreError(w, r, err, "load saved profiles")
			return
		}

		items := make([]savedItem, 0, len(users))
		for _, u := range users {
			items = append(items, savedItem{
				ID:       u.ID,
				Name:     u.Name,
				Age:      u.Age,
				Location: u.Location,
				About:    u.About,
				Photo:    photos[u.ID],
			})
		}
		shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		writeJSON(w, http.StatusOK, items)
	}
}
