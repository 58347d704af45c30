package inference

import (
	"sort"
	"strings"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/extraction"
)

const positionLineTolerance = 2

// InferPositional checks whether the corrected values sit at a stable layout
// offset across the sample documents and, if so, proposes a line/column
// region. Confidence is the fraction of samples the region reproduces.
func InferPositional(in Input) *Candidate {
	type hit struct {
		line      int
		charStart int
		charEnd   int
	}
	var hits []hit
	eligible := 0
	for _, s := range in.Samples {
		if s == nil {
			continue
		}
		text, ok := in.DocText[s.DocumentID]
		if !ok || text == "" {
			continue
		}
		eligible++
		value := strings.TrimSpace(s.CorrectedValue)
		if value == "" {
			continue
		}
		for i, line := range strings.Split(text, "\n") {
			col := strings.Index(line, value)
			if col < 0 {
				continue
			}
			hits = append(hits, hit{line: i, charStart: col, charEnd: col + len(value)})
			break
		}
	}
	if eligible == 0 || len(hits) == 0 {
		return nil
	}

	lines := make([]int, len(hits))
	start, end := hits[0].charStart, hits[0].charEnd
	for i, h := range hits {
		lines[i] = h.line
		if h.charStart < start {
			start = h.charStart
		}
		if h.charEnd > end {
			end = h.charEnd
		}
	}
	sort.Ints(lines)
	median := lines[len(lines)/2]

	payload := types.PositionPayload{
		Method:        types.ExtractionTypePosition,
		Line:          median,
		LineTolerance: positionLineTolerance,
		CharStart:     start,
		CharEnd:       end,
	}
	raw, err := types.MarshalPayload(payload)
	if err != nil {
		return nil
	}

	matched := 0
	for _, s := range in.Samples {
		if s == nil {
			continue
		}
		text, ok := in.DocText[s.DocumentID]
		if !ok || text == "" {
			continue
		}
		got, err := extraction.Apply(raw, in.FieldName, text)
		if err != nil {
			continue
		}
		if got != "" && got == extraction.Normalize(in.FieldName, s.CorrectedValue) {
			matched++
		}
	}
	if matched == 0 {
		return nil
	}
	return &Candidate{
		Method:     StrategyPosition,
		Payload:    payload,
		Confidence: float64(matched) / float64(eligible),
		Complexity: 2,
	}
}
