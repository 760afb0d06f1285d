package main

import (
	"net/http"
	"strings"

	"gitea.kood.tech/petrkubec/affinity/store"
	"go.uber.org/zap"
)

type profileUpdateRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Age        int      `json:"age" validate:"required,gte=18,lte=120"`
	Gender     string   `json:"gender" validate:"required,max=30"`
	LookingFor []string `json:"looking_for" validate:"max=10,dive,max=30"`
	Location   string   `json:"location" validate:"required,max=100"`
	About      string   `json:"about" validate:"max=2000"`
	Email      string   `json:"email" validate:"omitempty,email,max=254"`
	Tel        string   `json:"tel" validate:"omitempty,max=30"`
	Instagram  string   `json:"instagram" validate:"omitempty,max=50"`
	Telegram   string   `json:"telegram" validate:"omitempty,max=50"`
}

type contactInfo struct {
	Email     string `json:"email"`
	Tel       string `json:"tel"`
	Instagram string `json:"instagram"`
	Telegram  string `json:"telegram"`
}

// publicProfile is another user's profile as seen by the caller. Photos and
// contacts are only filled once the matching disclosure was accepted.
type publicProfile struct {
	ID                 int          `json:"id"`
	Username           string       `json:"username"`
	Name               string       `json:"name"`
	Age                int          `json:"age"`
	Gender             string       `json:"gender"`
	LookingFor         []string     `json:"looking_for"`
	Location           string       `json:"location"`
	About              string       `json:"about"`
	Photos             []string     `json:"photos"`
	Contacts           *contactInfo `json:"contacts,omitempty"`
	PhotoRevealStatus  string       `json:"photo_reveal_status"`
	ContactShareStatus string       `json:"contact_share_status"`
	IsSaved            bool         `json:"is_saved"`
}

type browseItem struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Location string `json:"location"`
	About    string `json:"about"`
	Photo    string `json:"photo,omitempty"`
}

// GET /me
func meHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := b.FetchUser(r.Context(), currentUserID(r))
		if err != nil {
			writeStoreError(w, r, err, "fetch current user")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       u.ID,
			"username": u.Username,
			"name":     u.Name,
		})
	}
}

// GET /me/profile
func getMyProfileHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := b.FetchUser(r.Context(), currentUserID(r))
		if err != nil {
			writeStoreError(w, r, err, "fetch own profile")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// PUT /me/profile
func updateMyProfileHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Location = strings.TrimSpace(req.Location)
		req.About = strings.TrimSpace(req.About)
		if !validateRequest(w, &req) {
			return
		}

		me := currentUserID(r)
		err := b.UpdateProfile(r.Context(), me, store.ProfileUpdate{
			Name:       req.Name,
			Age:        req.Age,
			Gender:     req.Gender,
			LookingFor: req.LookingFor,
			Location:   req.Location,
			About:      req.About,
			Email:      req.Email,
			Tel:        req.Tel,
			Instagram:  req.Instagram,
			Telegram:   req.Telegram,
		})
		if err != nil {
			writeStoreError(w, r, err, "update profile")
			return
		}

		u, err := b.FetchUser(r.Context(), me)
		if err != nil {
			writeStoreError(w, r, err, "reload profile")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// GET /users/{id}/profile
func userProfileHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		ctx := r.Context()
		me := currentUserID(r)

		u, err := b.FetchUser(ctx, targetID)
		if err != nil {
			writeStoreError(w, r, err, "fetch profile")
			return
		}

		view := publicProfile{
			ID:                 u.ID,
			Username:           u.Username,
			Name:               u.Name,
			Age:                u.Age,
			Gender:             u.Gender,
			LookingFor:         u.LookingFor,
			Location:           u.Location,
			About:              u.About,
			Photos:             []string{},
			PhotoRevealStatus:  store.StatusNone,
			ContactShareStatus: store.StatusNone,
		}

		photosVisible, contactsVisible := targetID == me, targetID == me
		if targetID != me {
			if view.PhotoRevealStatus, err = b.RequestStatus(ctx, store.KindPhotoReveal, me, targetID); err != nil {
				writeStoreError(w, r, err, "photo reveal status")
				return
			}
			if view.ContactShareStatus, err = b.RequestStatus(ctx, store.KindContactShare, me, targetID); err != nil {
				writeStoreError(w, r, err, "contact share status")
				return
			}
			photosVisible = view.PhotoRevealStatus == store.StatusAccepted
			contactsVisible = view.ContactShareStatus == store.StatusAccepted

			saved, err := explicitSaves(ctx, b, me)
			if err != nil {
				writeStoreError(w, r, err, "saved profiles")
				return
			}
			_, view.IsSaved = saved[targetID]
		}

		if photosVisible {
			if view.Photos, err = b.Photos(ctx, targetID); err != nil {
				writeStoreError(w, r, err, "photos")
				return
			}
		}
		if contactsVisible {
			view.Contacts = &contactInfo{Email: u.Email, Tel: u.Tel, Instagram: u.Instagram, Telegram: u.Telegram}
		}

		writeJSON(w, http.StatusOK, view)
	}
}

// GET /browse
func browseHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		me := currentUserID(r)

		profiles, err := b.FetchAllProfiles(ctx)
		if err != nil {
			writeStoreError(w, r, err, "fetch profiles")
			return
		}

		ids := make([]int, 0, len(profiles))
		for _, p := range profiles {
			if p.ID != me {
				ids = append(ids, p.ID)
			}
		}
		photos, err := b.FirstPhotos(ctx, ids)
		if err != nil {
			writeStoreError(w, r, err, "fetch photos")
			return
		}

		items := make([]browseItem, 0, len(ids))
		for _, p := range profiles {
			if p.ID == me {
				continue
			}
			items = append(items, browseItem{
				ID:       p.ID,
				Name:     p.Name,
				Age:      p.Age,
				Location: p.Location,
				About:    p.Bio,
				Photo:    photos[p.ID],
			})
		}
		shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

		requestLogger(r).Debug("browse", zap.Int("user_id", me), zap.Int("profiles", len(items)))
		writeJSON(w, http.StatusOK, items)
	}
}
