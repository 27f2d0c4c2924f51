// Package resolution turns a candidate set into an authentication outcome.
//
//	Start ──0──▶ NoMatch
//	      ──1──▶ UniqueMatch (direct)
//	      ──n──▶ Ambiguous ──email owns a candidate──▶ UniqueMatch (confirmed)
//	                       ──otherwise──────────────▶ DisambiguationFailed
//
// Resolve is a pure function of its input. Nothing is cached between
// attempts; a retry brings fresh audio and a fresh candidate set.
package resolution

import (
	"voxid/internal/voice/models"
	id "voxid/pkg/domain"
)

// Path records how a UniqueMatch was reached.
type Path string

const (
	PathNone      Path = ""
	PathDirect    Path = "direct"
	PathConfirmed Path = "confirmed"
)

// Input is one resolution attempt. Disambiguator is the normalized email the
// caller supplied, if any. EmailOwner is the identity that email belongs to,
// or nil when it belongs to nobody.
type Input struct {
	Candidates    []models.MatchCandidate
	Disambiguator string
	EmailOwner    *id.IdentityID
}

type Result struct {
	Outcome    models.Outcome
	Path       Path
	IdentityID id.IdentityID
	// Similarity is the score of the resolved candidate, including when it
	// was confirmed by email.
	Similarity float64
	// Candidates is set only for Ambiguous.
	Candidates []id.IdentityID
}

func Resolve(in Input) Result {
	switch len(in.Candidates) {
	case 0:
		return Result{Outcome: models.OutcomeNoMatch}
	case 1:
		c := in.Candidates[0]
		return Result{
			Outcome:    models.OutcomeUniqueMatch,
			Path:       PathDirect,
			IdentityID: c.IdentityID,
			Similarity: c.Similarity,
		}
	}

	if in.Disambiguator == "" {
		return Result{
			Outcome:    models.OutcomeAmbiguous,
			Candidates: models.CandidateIDs(in.Candidates),
		}
	}
	return disambiguate(in)
}

func disambiguate(in Input) Result {
	if in.EmailOwner == nil || in.EmailOwner.IsNil() {
		return Result{Outcome: models.OutcomeDisambiguationFailed}
	}
	for _, c := range in.Candidates {
		if c.IdentityID == *in.EmailOwner {
			return Result{
				Outcome:    models.OutcomeUniqueMatch,
				Path:       PathConfirmed,
				IdentityID: c.IdentityID,
				Similarity: c.Similarity,
			}
		}
	}
	return Result{Outcome: models.OutcomeDisambiguationFailed}
}

// NeedsDisambiguator reports whether an email lookup can change the outcome.
// Callers use it to skip the lookup when there are fewer than two candidates.
func NeedsDisambiguator(candidates []models.MatchCandidate, disambiguator string) bool {
	return len(candidates) > 1 && disambiguator != ""
}
