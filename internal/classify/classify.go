// Package classify turns the raw signals pkg/modelsig extracts from a
// model's files into a single model_type decision, applying the scoring
// policy: hard architecture/config signals dominate, soft signals (tags,
// repo name tokens) never drive the primary decision, and conflicting hard
// signals always fail closed to "unknown".
package classify

import (
	"sort"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/modelsig"
)

const (
	scorePrimaryHard  = 0.70
	scoreAgreeingHard = 0.20
	scoreAgreeingSoft = 0.10
	scoreConflictSoft = -0.20

	thresholdAutoAccept = 0.85
	thresholdUnknown    = 0.60
)

// Result is the classifier's verdict for one candidate model.
type Result struct {
	ModelType          string
	ArchitectureTokens []string
	Score              float64
	NeedsReview        bool
	ReviewReasons      []string
}

// Classify folds hints collected across every file belonging to a candidate
// model into a single model-type decision. Hints are expected to come from
// modelsig.Inspect run over each file in the candidate's file set.
func Classify(hints []modelsig.Hint) Result {
	if len(hints) == 0 {
		return unresolved()
	}

	hardGuesses := map[string]bool{}
	softGuesses := map[string]bool{}
	var archTokens []string

	for _, h := range hints {
		if h.ArchitectureToken != "" {
			archTokens = append(archTokens, h.ArchitectureToken)
		}
		if h.ModelTypeGuess == "" {
			continue
		}
		if h.Kind == modelsig.SignalHard {
			hardGuesses[h.ModelTypeGuess] = true
		} else {
			softGuesses[h.ModelTypeGuess] = true
		}
	}

	if len(hardGuesses) > 1 {
		return Result{
			ModelType:          "unknown",
			ArchitectureTokens: dedupSorted(archTokens),
			ReviewReasons:      []string{"model-type-conflict"},
			NeedsReview:        true,
		}
	}

	if len(hardGuesses) == 0 {
		// No hard signal at all: soft signals alone are explicitly rejected
		// as a basis for a primary decision.
		return unresolvedWithTokens(archTokens)
	}

	var primary string
	for guess := range hardGuesses {
		primary = guess
	}

	score := scorePrimaryHard
	for guess := range softGuesses {
		if guess == primary {
			score += scoreAgreeingSoft
		} else {
			score += scoreConflictSoft
		}
	}
	// A second, agreeing hard signal (e.g. both GGUF architecture and a
	// vision config flag pointing the same way) adds further confidence;
	// detected here as more than one hard hint total agreeing with primary.
	agreeingHardCount := 0
	for _, h := range hints {
		if h.Kind == modelsig.SignalHard && h.ModelTypeGuess == primary {
			agreeingHardCount++
		}
	}
	if agreeingHardCount > 1 {
		score += scoreAgreeingHard
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	result := Result{
		ModelType:          primary,
		ArchitectureTokens: dedupSorted(archTokens),
		Score:              score,
	}

	switch {
	case score >= thresholdAutoAccept:
		// accepted, no review needed
	case score >= thresholdUnknown:
		result.NeedsReview = true
		result.ReviewReasons = []string{"model-type-low-confidence"}
	default:
		result.ModelType = "unknown"
		result.NeedsReview = true
		result.ReviewReasons = []string{"model-type-unresolved"}
	}

	return result
}

func unresolved() Result {
	return Result{
		ModelType:     "unknown",
		NeedsReview:   true,
		ReviewReasons: []string{"model-type-unresolved"},
	}
}

func unresolvedWithTokens(tokens []string) Result {
	r := unresolved()
	r.ArchitectureTokens = dedupSorted(tokens)
	return r
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
