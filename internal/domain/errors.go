package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrVersionNotFound marks a version id that is absent from a lineage.
	ErrVersionNotFound = errors.New("version not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidTransitionError rejects a lifecycle command issued from a terminal or
// wrong state. Current carries the state the caller should resynchronize to.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %q from status %q", e.Attempted, e.Current)
}

// ConsistencyViolationError indicates the single-active-rule invariant was (or
// would have been) broken. The offending operation must halt; this is never
// retried.
type ConsistencyViolationError struct {
	Detail string
}

func (e *ConsistencyViolationError) Error() string {
	return "consistency violation: " + e.Detail
}

// InferenceFailure is a structured result, not an error crossing the API
// boundary: no strategy met the confidence floor for the pattern's samples.
type InferenceFailure struct {
	Reason         string             `json:"reason"`
	BestConfidence float64            `json:"best_confidence"`
	StrategyScores map[string]float64 `json:"strategy_scores,omitempty"`
}
