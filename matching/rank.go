package matching

import (
	"sort"
	"strings"
)

const (
	glimpseWords  = 10
	glimpseMarker = "..."
)

// Match is one ranked candidate for a requesting profile.
type Match struct {
	CandidateID int     `json:"candidate_id"`
	Score       float64 `json:"score"`
	Glimpse     string  `json:"glimpse"`
	IsSaved     bool    `json:"is_saved"`
}

// Glimpse returns the first ten whitespace-separated words of bio followed by
// an ellipsis. The marker is appended even when the bio is shorter.
func Glimpse(bio string) string {
	words := strings.Fields(bio)
	if len(words) > glimpseWords {
		words = words[:glimpseWords]
	}
	return strings.Join(words, " ") + glimpseMarker
}

// Rank scores requester against every other profile in corpus and returns the
// candidates ordered by descending score. Equal scores keep corpus order.
// saved marks candidates already in the requester's explicit-save relation and
// may be nil.
func Rank(requester Profile, corpus []Profile, scorer Scorer, saved map[int]struct{}) []Match {
	matches := make([]Match, 0, len(corpus))
	for _, candidate := range corpus {
		if candidate.ID == requester.ID {
			continue
		}
		_, isSaved := saved[candidate.ID]
		matches = append(matches, Match{
			CandidateID: candidate.ID,
			Score:       scorer.Score(requester, candidate),
			Glimpse:     Glimpse(candidate.Bio),
			IsSaved:     isSaved,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
