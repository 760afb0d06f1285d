package main

import (
	"context"
	"net/http"
	"time"

	"gitea.kood.tech/petrkubec/affinity/matching"
	"go.uber.org/zap"
)

const (
	modeLexical   = "lexical"
	modeEmbedding = "embedding"
)

// matchItem is one ranked candidate with its display attributes.
type matchItem struct {
	matching.Match
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Location string `json:"location"`
}

func parseMode(r *http.Request) (string, bool) {
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", modeLexical:
		return modeLexical, true
	case modeEmbedding:
		return modeEmbedding, true
	default:
		return "", false
	}
}

// scorerFor picks the scorer of a mode. Embedding mode reads the table the
// similarity job stored for requesterID; pairs it never computed score 0.
func scorerFor(ctx context.Context, b backend, mode string, requesterID int) (matching.Scorer, error) {
	if mode == modeEmbedding {
		return b.SimilarityFrom(ctx, requesterID)
	}
	return matching.Lexical{}, nil
}

// GET /matches[?mode=embedding]
func matchesHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := parseMode(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_mode")
			return
		}
		ctx := r.Context()
		me := currentUserID(r)
		start := time.Now()

		corpus, err := b.FetchAllProfiles(ctx)
		if err != nil {
			writeStoreError(w, r, err, "fetch profiles")
			return
		}

		var requester matching.Profile
		found := false
		byID := make(map[int]matching.Profile, len(corpus))
		for _, p := range corpus {
			byID[p.ID] = p
			if p.ID == me {
				requester, found = p, true
			}
		}
		if !found {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		scorer, err := scorerFor(ctx, b, mode, me)
		if err != nil {
			writeStoreError(w, r, err, "load similarity table")
			return
		}
		saved, err := explicitSaves(ctx, b, me)
		if err != nil {
			writeStoreError(w, r, err, "saved profiles")
			return
		}

		ranked := matching.Rank(requester, corpus, scorer, saved)
		items := make([]matchItem, len(ranked))
		for i, m := range ranked {
			p := byID[m.CandidateID]
			items[i] = matchItem{Match: m, Name: p.Name, Age: p.Age, Location: p.Location}
		}

		RankingDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		requestLogger(r).Debug("ranked candidates",
			zap.Int("user_id", me),
			zap.String("mode", mode),
			zap.Int("candidates", len(items)),
		)
		writeJSON(w, http.StatusOK, items)
	}
}

// GET /matches/{id}/score[?mode=embedding]
func scoreHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := parseMode(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_mode")
			return
		}
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
		ctx := r.Context()

		a, err := b.FetchProfile(ctx, me)
		if err != nil {
			writeStoreError(w, r, err, "fetch requester")
			return
		}
		c, err := b.FetchProfile(ctx, targetID)
		if err != nil {
			writeStoreError(w, r, err, "fetch candidate")
			return
		}
		scorer, err := scorerFor(ctx, b, mode, me)
		if err != nil {
			writeStoreError(w, r, err, "load similarity table")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":      me,
			"candidate_id": targetID,
			"mode":         mode,
			"score":        scorer.Score(a, c),
		})
	}
}
