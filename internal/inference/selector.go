package inference

import (
	"sort"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
)

var strategyOrder = map[string]int{
	StrategyRegex:    0,
	StrategyKeyword:  1,
	StrategyPosition: 2,
}

// Infer runs every strategy against the same input and picks the winner:
// highest confidence above the floor, ties broken by simplest payload, then
// by a fixed strategy order so results are deterministic. A nil InferredRule
// with a non-nil failure means no strategy was confident enough; the pattern
// stays a candidate.
func Infer(in Input, floor float64) (*InferredRule, *types.InferenceFailure) {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}

	var candidates []*Candidate
	for _, c := range []*Candidate{InferRegex(in), InferKeyword(in), InferPositional(in)} {
		if c != nil {
			candidates = append(candidates, c)
		}
	}

	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		scores[c.Method] = c.Confidence
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Complexity != b.Complexity {
			return a.Complexity < b.Complexity
		}
		return strategyOrder[a.Method] < strategyOrder[b.Method]
	})

	if len(candidates) == 0 || candidates[0].Confidence < floor {
		best := 0.0
		if len(candidates) > 0 {
			best = candidates[0].Confidence
		}
		return nil, &types.InferenceFailure{
			Reason:         "no strategy met the confidence floor",
			BestConfidence: best,
			StrategyScores: scores,
		}
	}

	winner := candidates[0]
	return &InferredRule{
		ExtractionType: winner.Method,
		Payload:        winner.Payload,
		Confidence:     winner.Confidence,
	}, nil
}
