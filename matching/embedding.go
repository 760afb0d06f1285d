package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Embedder turns texts into dense vectors of a fixed dimension, one per text
// and in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrEmbeddingMismatch is returned when an Embedder yields the wrong number of
// vectors or vectors of differing dimensions.
var ErrEmbeddingMismatch = errors.New("embedding result does not match input")

// Pair is an ordered pair of profile ids.
type Pair struct {
	From int
	To   int
}

// SimilarityTable holds precomputed scores for ordered profile pairs. It is the
// output of a batch run and also serves as a Scorer over that output: pairs
// that were never computed score 0.
type SimilarityTable map[Pair]float64

// Score implements Scorer.
func (t SimilarityTable) Score(a, b Profile) float64 {
	return t[Pair{From: a.ID, To: b.ID}]
}

// RemapCosine maps a cosine similarity from [-1, 1] onto [0, 100].
func RemapCosine(cos float64) float64 {
	cos = math.Max(-1, math.Min(1, cos))
	return (cos + 1) / 2 * 100
}

// Cosine returns the cosine similarity of a and b. ok is false when the
// vectors differ in length or either has zero magnitude.
func Cosine(a, b []float32) (cos float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// EmbeddingScorer scores profiles by the cosine similarity of their bio
// vectors. A profile without a vector, or with a zero vector, scores 0.
type EmbeddingScorer struct {
	vectors map[int][]float32
}

// NewEmbeddingScorer returns a scorer over vectors keyed by profile id.
func NewEmbeddingScorer(vectors map[int][]float32) *EmbeddingScorer {
	return &EmbeddingScorer{vectors: vectors}
}

// Score implements Scorer.
func (s *EmbeddingScorer) Score(a, b Profile) float64 {
	cos, ok := Cosine(s.vectors[a.ID], s.vectors[b.ID])
	if !ok {
		return 0
	}
	return RemapCosine(cos)
}

// EmbedProfiles embeds the bio of every profile. Empty bios are never sent to
// the embedder and get a zero vector of the model's dimension.
func EmbedProfiles(ctx context.Context, embedder Embedder, profiles []Profile) (map[int][]float32, error) {
	texts := make([]string, 0, len(profiles))
	ids := make([]int, 0, len(profiles))
	for _, p := range profiles {
		if strings.TrimSpace(p.Bio) == "" {
			continue
		}
		texts = append(texts, p.Bio)
		ids = append(ids, p.ID)
	}

	vectors := make(map[int][]float32, len(profiles))
	if len(texts) > 0 {
		embedded, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed bios: %w", err)
		}
		if len(embedded) != len(texts) {
			return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrEmbeddingMismatch, len(embedded), len(texts))
		}
		dim := len(embedded[0])
		for i, v := range embedded {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: dimension %d, want %d", ErrEmbeddingMismatch, len(v), dim)
			}
			vectors[ids[i]] = v
		}
	}

	dim := 0
	for _, v := range vectors {
		dim = len(v)
		break
	}
	for _, p := range profiles {
		if _, ok := vectors[p.ID]; !ok {
			vectors[p.ID] = make([]float32, dim)
		}
	}
	return vectors, nil
}

// BatchSimilarityTable embeds every profile and scores every ordered pair of
// distinct profiles. Both directions of a pair are present even though the
// values are equal. Any embedding failure aborts the whole computation.
func BatchSimilarityTable(ctx context.Context, embedder Embedder, profiles []Profile) (SimilarityTable, error) {
	vectors, err := EmbedProfiles(ctx, embedder, profiles)
	if err != nil {
		return nil, err
	}
	scorer := NewEmbeddingScorer(vectors)

	table := make(SimilarityTable, len(profiles)*max(len(profiles)-1, 0))
	for _, a := range profiles {
		for _, b := range profiles {
			if a.ID == b.ID {
				continue
			}
			table[Pair{From: a.ID, To: b.ID}] = scorer.Score(a, b)
		}
	}
	return table, nil
}
