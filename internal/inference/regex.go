package inference

import (
	"fmt"
	"regexp"
	"strings"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
)

// InferRegex builds the shortest literal-or-character-class template that
// reproduces the corrected values. Confidence is the fraction of corrected
// values the generalized pattern matches in full.
func InferRegex(in Input) *Candidate {
	values := correctedValues(in.Samples)
	if len(values) == 0 {
		return nil
	}

	pattern, complexity := generalize(values)
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil
	}
	matched := 0
	for _, v := range values {
		if re.MatchString(v) {
			matched++
		}
	}
	if matched == 0 {
		return nil
	}
	return &Candidate{
		Method:     StrategyRegex,
		Payload:    types.RegexPayload{Method: types.ExtractionTypeRegex, Pattern: pattern},
		Confidence: float64(matched) / float64(len(values)),
		Complexity: complexity,
	}
}

func correctedValues(samples []*types.CorrectionSample) []string {
	out := make([]string, 0, len(samples))
	for _, s := range samples {
		if s == nil {
			continue
		}
		v := strings.TrimSpace(s.CorrectedValue)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

type classRun struct {
	class  string // "", "\\d", "[A-Z]", "[a-z]", "\\s"
	text   string // literal text when class == ""
	minLen int
	maxLen int
}

// generalize builds a template from the class-run signatures of the values.
// Identical values give a pure literal; values sharing one class signature
// give fixed or bounded repetitions; mixed signatures fall back to the
// majority signature so confidence reflects the leftovers.
func generalize(values []string) (string, int) {
	if allEqual(values) {
		return regexp.QuoteMeta(values[0]), 0
	}

	grouped := map[string][]string{}
	for _, v := range values {
		grouped[signatureKey(v)] = append(grouped[signatureKey(v)], v)
	}
	// Equal-size groups break on the signature key so the winner is the same
	// on every run.
	var majority []string
	var majorityKey string
	for key, group := range grouped {
		if len(group) > len(majority) || (len(group) == len(majority) && key < majorityKey) {
			majority = group
			majorityKey = key
		}
	}

	runsPerValue := make([][]classRun, len(majority))
	for i, v := range majority {
		runsPerValue[i] = classRuns(v)
	}
	merged := runsPerValue[0]
	for _, runs := range runsPerValue[1:] {
		for j := range merged {
			if runs[j].minLen < merged[j].minLen {
				merged[j].minLen = runs[j].minLen
			}
			if runs[j].maxLen > merged[j].maxLen {
				merged[j].maxLen = runs[j].maxLen
			}
		}
	}

	var b strings.Builder
	complexity := 0
	for _, r := range merged {
		if r.class == "" {
			b.WriteString(regexp.QuoteMeta(r.text))
			continue
		}
		complexity++
		b.WriteString(r.class)
		switch {
		case r.minLen == r.maxLen && r.minLen == 1:
		case r.minLen == r.maxLen:
			fmt.Fprintf(&b, "{%d}", r.minLen)
		default:
			fmt.Fprintf(&b, "{%d,%d}", r.minLen, r.maxLen)
		}
	}
	return b.String(), complexity
}

func allEqual(values []string) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func classOf(r rune) string {
	switch {
	case r >= '0' && r <= '9':
		return `\d`
	case r >= 'A' && r <= 'Z':
		return `[A-Z]`
	case r >= 'a' && r <= 'z':
		return `[a-z]`
	case r == ' ' || r == '\t':
		return `\s`
	default:
		return ""
	}
}

func classRuns(v string) []classRun {
	var runs []classRun
	for _, r := range v {
		c := classOf(r)
		n := len(runs)
		if n > 0 && runs[n-1].class == c {
			if c == "" {
				runs[n-1].text += string(r)
			} else {
				runs[n-1].minLen++
				runs[n-1].maxLen++
			}
			continue
		}
		run := classRun{class: c, minLen: 1, maxLen: 1}
		if c == "" {
			run.text = string(r)
		}
		runs = append(runs, run)
	}
	return runs
}

func signatureKey(v string) string {
	var b strings.Builder
	for _, run := range classRuns(v) {
		if run.class == "" {
			b.WriteString("lit:" + run.text + ";")
		} else {
			b.WriteString(run.class + ";")
		}
	}
	return b.String()
}
