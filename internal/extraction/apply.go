package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/datatypes"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
)

// Base confidence per extraction method; a matched rule starts here before any
// rule-specific adjustment.
var BaseConfidence = map[string]float64{
	types.ExtractionTypeRegex:    0.85,
	types.ExtractionTypeKeyword:  0.75,
	types.ExtractionTypePosition: 0.70,
}

const maxKeywordDistance = 50

// Apply runs a pattern payload against raw document text and returns the
// extracted, normalized value. Empty string with nil error means the rule
// matched nothing; a non-nil error means the payload could not be evaluated at
// all (malformed payload or document).
func Apply(payload datatypes.JSON, fieldName, rawText string) (string, error) {
	method, err := types.PayloadMethod(payload)
	if err != nil {
		return "", err
	}
	var raw string
	switch method {
	case types.ExtractionTypeRegex:
		raw, err = applyRegex(payload, rawText)
	case types.ExtractionTypeKeyword:
		raw, err = applyKeyword(payload, rawText)
	case types.ExtractionTypePosition:
		raw, err = applyPosition(payload, rawText)
	default:
		return "", fmt.Errorf("unknown extraction method %q", method)
	}
	if err != nil {
		return "", err
	}
	return Normalize(fieldName, raw), nil
}

func applyRegex(payload datatypes.JSON, rawText string) (string, error) {
	var p types.RegexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("decode regex payload: %w", err)
	}
	if strings.TrimSpace(p.Pattern) == "" {
		return "", fmt.Errorf("regex payload missing pattern")
	}
	re, err := regexp.Compile(flagPrefix(p.Flags) + p.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern: %w", err)
	}
	m := re.FindStringSubmatch(rawText)
	if m == nil {
		return "", nil
	}
	idx := p.GroupIndex
	if idx < 0 || idx >= len(m) {
		idx = 0
	}
	return m[idx], nil
}

// flagPrefix maps the payload's flag letters to a Go regexp group. The payload
// format carries PCRE-style single letters.
func flagPrefix(flags string) string {
	var b strings.Builder
	for _, f := range "ims" {
		if strings.ContainsRune(flags, f) {
			b.WriteRune(f)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}

func applyKeyword(payload datatypes.JSON, rawText string) (string, error) {
	var p types.KeywordPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("decode keyword payload: %w", err)
	}
	if len(p.Keywords) == 0 {
		return "", fmt.Errorf("keyword payload missing keywords")
	}
	maxDistance := p.MaxDistance
	if maxDistance <= 0 {
		maxDistance = maxKeywordDistance
	}

	textLower := strings.ToLower(rawText)
	for _, keyword := range p.Keywords {
		idx := strings.Index(textLower, strings.ToLower(keyword))
		if idx < 0 {
			continue
		}
		start := idx + len(keyword)
		end := start + maxDistance
		if end > len(rawText) {
			end = len(rawText)
		}
		if value := valueAfterKeyword(rawText[start:end]); value != "" {
			return value, nil
		}
	}
	return "", nil
}

var afterKeywordRe = regexp.MustCompile(`^([^\n\r|]{1,100})`)

// valueAfterKeyword pulls the value out of the text that follows a keyword
// anchor: skip separators, take up to the end of line, drop trailing
// punctuation.
func valueAfterKeyword(context string) string {
	context = strings.TrimLeft(context, " :：\t\n")
	if context == "" {
		return ""
	}
	m := afterKeywordRe.FindStringSubmatch(context)
	if m == nil {
		return ""
	}
	value := strings.TrimSpace(m[1])
	return strings.TrimRight(value, ",;: \t")
}

func applyPosition(payload datatypes.JSON, rawText string) (string, error) {
	var p types.PositionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("decode position payload: %w", err)
	}
	if p.Line < 0 || p.CharEnd <= p.CharStart {
		return "", fmt.Errorf("position payload has invalid region")
	}
	lines := strings.Split(rawText, "\n")

	// Scan the tolerance window nearest-first so a one-line layout shift still
	// resolves to the closest candidate.
	for offset := 0; offset <= p.LineTolerance; offset++ {
		for _, line := range []int{p.Line - offset, p.Line + offset} {
			if line < 0 || line >= len(lines) {
				continue
			}
			if v := columnRegion(lines[line], p.CharStart, p.CharEnd); v != "" {
				return v, nil
			}
			if offset == 0 {
				break
			}
		}
	}
	return "", nil
}

func columnRegion(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}
