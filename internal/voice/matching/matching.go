// Package matching scores a query voiceprint against every enrolled profile.
// The scan is exhaustive: no index, no early exit.
package matching

import (
	"fmt"
	"math"
	"sort"

	"voxid/internal/voice/models"
	dErrors "voxid/pkg/domain-errors"
)

// DefaultThreshold is the minimum cosine similarity for a profile to become
// a candidate.
const DefaultThreshold = 0.93

// ErrDimensionMismatch is returned, wrapped, when the query and a stored
// profile differ in length.
var ErrDimensionMismatch = models.ErrDimensionMismatch

// Cosine returns (a·b)/(|a||b|) in [-1, 1]. A zero vector scores 0.
func Cosine(a, b models.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	if na == nb && dot == na {
		return 1, nil
	}
	sim := dot / math.Sqrt(na*nb)
	return math.Max(-1, math.Min(1, sim)), nil
}

// Engine holds the system-wide threshold.
type Engine struct {
	threshold float64
}

func NewEngine(threshold float64) (*Engine, error) {
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("match threshold must be in (0, 1], got %v", threshold))
	}
	return &Engine{threshold: threshold}, nil
}

func (e *Engine) Threshold() float64 { return e.threshold }

// Match returns every profile with similarity >= threshold, best first.
// Any profile whose dimension differs from the query fails the whole call.
func (e *Engine) Match(query models.Embedding, profiles []*models.VoiceProfile) ([]models.MatchCandidate, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var candidates []models.MatchCandidate
	for _, p := range profiles {
		sim, err := Cosine(query, p.Embedding)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.IdentityID, err)
		}
		if sim >= e.threshold {
			candidates = append(candidates, models.MatchCandidate{IdentityID: p.IdentityID, Similarity: sim})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].IdentityID.String() < candidates[j].IdentityID.String()
	})
	return candidates, nil
}
