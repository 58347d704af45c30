// Package inference proposes candidate extraction rules from clusters of
// human corrections. Strategies are independent pure functions over the same
// sample set; the selector keeps the highest-confidence candidate above the
// configured floor.
package inference

import (
	"github.com/google/uuid"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
)

const (
	StrategyRegex    = types.ExtractionTypeRegex
	StrategyKeyword  = types.ExtractionTypeKeyword
	StrategyPosition = types.ExtractionTypePosition
)

// DefaultConfidenceFloor is the minimum confidence a candidate needs before it
// becomes a suggestion.
const DefaultConfidenceFloor = 0.6

// Input is everything a strategy may look at: the correction samples for one
// (source entity, field) key and the raw text of the documents they came from.
// DocText may be missing entries; strategies that need source text skip those
// samples.
type Input struct {
	FieldName string
	Samples   []*types.CorrectionSample
	DocText   map[uuid.UUID]string
}

// Candidate is one strategy's proposal. Complexity counts the variable tokens
// in the payload and breaks confidence ties: simplest wins.
type Candidate struct {
	Method     string
	Payload    any
	Confidence float64
	Complexity int
}

// InferredRule is the selector's winning candidate, ready to embed in a
// suggestion.
type InferredRule struct {
	ExtractionType string
	Payload        any
	Confidence     float64
}
