package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
)

// ErrDimensionMismatch means two embeddings that must share a length do not.
// It signals model drift between enrollment and login and is never scored.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedding is a fixed-length voiceprint produced by the embedding service.
// Its length is set by the service's output contract.
type Embedding []float64

func (e Embedding) Dimension() int { return len(e) }

// Validate rejects empty vectors and non-finite components.
func (e Embedding) Validate() error {
	if len(e) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "embedding must not be empty")
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("embedding component %d is not finite", i))
		}
	}
	return nil
}

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// VoiceProfile is the single enrolled voiceprint of an identity.
type VoiceProfile struct {
	IdentityID id.IdentityID
	Embedding  Embedding
	// Phrase is the normalized enrollment transcript. It plays no part in matching.
	Phrase    string
	CreatedAt time.Time
}

func NewVoiceProfile(identityID id.IdentityID, embedding Embedding, phrase string, now time.Time) (*VoiceProfile, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity ID required")
	}
	if err := embedding.Validate(); err != nil {
		return nil, err
	}
	return &VoiceProfile{
		IdentityID: identityID,
		Embedding:  embedding.Clone(),
		Phrase:     phrase,
		CreatedAt:  now,
	}, nil
}

// Clone returns a deep copy so callers cannot mutate stored embeddings.
func (p *VoiceProfile) Clone() *VoiceProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Embedding = p.Embedding.Clone()
	return &cp
}

// MatchCandidate is a profile scoring at or above the threshold for one
// login attempt. It is never persisted.
type MatchCandidate struct {
	IdentityID id.IdentityID
	Similarity float64
}

// CandidateIDs returns the identity ids of cs in order.
func CandidateIDs(cs []MatchCandidate) []id.IdentityID {
	ids := make([]id.IdentityID, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.IdentityID)
	}
	return ids
}

// Outcome is the terminal state of one resolution attempt.
type Outcome string

const (
	OutcomeNoMatch              Outcome = "no_match"
	OutcomeUniqueMatch          Outcome = "success"
	OutcomeAmbiguous            Outcome = "ambiguous"
	OutcomeDisambiguationFailed Outcome = "disambiguation_failed"
)

func (o Outcome) String() string { return string(o) }

// Resolves reports whether the outcome authorizes session issuance.
func (o Outcome) Resolves() bool { return o == OutcomeUniqueMatch }
