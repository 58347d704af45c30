package inference

import (
	"strings"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/extraction"
)

const keywordMaxDistance = 50

// InferKeyword looks for a fixed label preceding the corrected value in the
// source text of each sample. The most common label becomes the anchor;
// confidence is the fraction of samples where extracting after that anchor
// reproduces the corrected value.
func InferKeyword(in Input) *Candidate {
	labelCounts := map[string]int{}
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
		if label := precedingLabel(text, s.CorrectedValue); label != "" {
			labelCounts[label]++
		}
	}
	if eligible == 0 || len(labelCounts) == 0 {
		return nil
	}

	anchor, best := "", 0
	for label, count := range labelCounts {
		if count > best || (count == best && label < anchor) {
			anchor, best = label, count
		}
	}

	payload := types.KeywordPayload{
		Method:      types.ExtractionTypeKeyword,
		Keywords:    []string{anchor},
		MaxDistance: keywordMaxDistance,
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
		Method:     StrategyKeyword,
		Payload:    payload,
		Confidence: float64(matched) / float64(eligible),
		Complexity: 1 + len(payload.Keywords),
	}
}

// precedingLabel finds the corrected value in the text and returns the label
// that introduces it on the same line: the text before the value, trimmed of
// separators, reduced to its last few words.
func precedingLabel(text, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	idx := strings.Index(text, value)
	if idx < 0 {
		idx = strings.Index(strings.ToLower(text), strings.ToLower(value))
	}
	if idx <= 0 {
		return ""
	}
	lineStart := strings.LastIndexByte(text[:idx], '\n') + 1
	prefix := strings.TrimRight(text[lineStart:idx], " :：\t")
	if prefix == "" {
		return ""
	}
	words := strings.Fields(prefix)
	if len(words) == 0 {
		return ""
	}
	if len(words) > 3 {
		words = words[len(words)-3:]
	}
	return strings.Join(words, " ")
}
