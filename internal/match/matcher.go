// Package match implements the progressive keyword reveal matcher: greedy
// cosine-similarity assignment of question keywords to hidden puzzle
// keywords.
package match

import (
	"fmt"
	"math"

	"github.com/ztpublic/turtlesoup/internal/domain"
)

// DefaultThreshold is the minimum cosine similarity for a keyword to count
// as matched.
const DefaultThreshold = 0.85

// dotProduct calculates the dot product of two vectors.
func dotProduct(vec1, vec2 []float32) (float32, error) {
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("vectors must have the same dimension: %d != %d", len(vec1), len(vec2))
	}
	var product float32
	for i := range vec1 {
		product += vec1[i] * vec2[i]
	}
	return product, nil
}

// magnitude calculates the L2 norm of a vector.
func magnitude(vec []float32) float32 {
	var sumOfSquares float32
	for _, val := range vec {
		sumOfSquares += val * val
	}
	return float32(math.Sqrt(float64(sumOfSquares)))
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// An all-zero vector has similarity 0 with anything; the zero norms are
// guarded explicitly so this never divides by zero.
func CosineSimilarity(vec1, vec2 []float32) (float32, error) {
	if len(vec1) == 0 || len(vec2) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	product, err := dotProduct(vec1, vec2)
	if err != nil {
		return 0, err
	}

	mag1 := magnitude(vec1)
	mag2 := magnitude(vec2)
	if mag1 == 0 || mag2 == 0 {
		return 0, nil
	}
	return product / (mag1 * mag2), nil
}

// RevealPass matches freshly embedded question keywords against the
// not-yet-revealed puzzle keywords and returns the ids newly revealed this
// pass. candidates and candidateVectors are index-aligned.
//
// Each question vector, in extraction order, claims at most the single best
// candidate at or above threshold; a claimed candidate leaves the pool so no
// keyword is matched twice within a pass. Candidates left unclaimed remain
// eligible for later questions. Ties break toward the earlier candidate.
//
// The pass is deterministic for fixed inputs, and read-only with respect to
// session state: persisting the reveal is the caller's job. A dimension
// mismatch aborts the whole pass with an error; the caller treats that as
// best-effort and reveals nothing.
func RevealPass(threshold float32, candidates []domain.PuzzleItem, candidateVectors [][]float32, questionVectors [][]float32) ([]string, error) {
	if len(candidates) != len(candidateVectors) {
		return nil, fmt.Errorf("candidate keywords and vectors misaligned: %d != %d", len(candidates), len(candidateVectors))
	}

	type candidate struct {
		id     string
		vector []float32
	}
	pool := make([]candidate, 0, len(candidates))
	for i, item := range candidates {
		pool = append(pool, candidate{id: item.ID, vector: candidateVectors[i]})
	}

	var revealed []string
	for _, qv := range questionVectors {
		if len(pool) == 0 {
			break
		}

		best := -1
		var bestScore float32
		for i, c := range pool {
			score, err := CosineSimilarity(qv, c.vector)
			if err != nil {
				return nil, fmt.Errorf("score keyword %q: %w", c.id, err)
			}
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}

		if bestScore < threshold {
			continue
		}
		revealed = append(revealed, pool[best].id)
		pool = append(pool[:best], pool[best+1:]...)
	}
	return revealed, nil
}
