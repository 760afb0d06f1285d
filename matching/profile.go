// Package matching scores how well two profiles' biographies fit together and
// ranks candidates for a requesting profile.
//
// Two independent scoring strategies exist: Lexical works online over the raw
// biography text, while the embedding strategy (EmbeddingScorer and the stored
// SimilarityTable it produces) is computed by an offline batch run. They share
// the Scorer interface and nothing else.
package matching

import "context"

// Profile is the matchable part of a user. Only Bio takes part in scoring,
// the display fields are carried through for presentation.
type Profile struct {
	ID       int
	Bio      string
	Name     string
	Age      int
	Location string
}

// Scorer computes an affinity value in [0, 100] between two profiles.
type Scorer interface {
	Score(a, b Profile) float64
}

// Relation names one of the outbound relations that make up an interest set.
type Relation string

const (
	RelationPhotoReveal  Relation = "photo_reveal"
	RelationContactShare Relation = "contact_share"
	RelationSaved        Relation = "saved"
)

// Relations lists every relation in the order they are unioned.
var Relations = []Relation{RelationPhotoReveal, RelationContactShare, RelationSaved}

// RelationSource returns the targets of one outbound relation of a profile.
type RelationSource interface {
	FetchOutbound(ctx context.Context, profileID int, rel Relation) ([]int, error)
}
