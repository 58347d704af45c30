package domain

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Extraction method types. JSON field names stay compatible with the payloads
// the downstream extraction engine already consumes.
const (
	ExtractionTypeRegex    = "regex"
	ExtractionTypeKeyword  = "keyword"
	ExtractionTypePosition = "position"
)

// RegexPayload extracts the first match of Pattern, optionally a capture group.
type RegexPayload struct {
	Method     string `json:"method"`
	Pattern    string `json:"pattern"`
	Flags      string `json:"flags,omitempty"`
	GroupIndex int    `json:"groupIndex,omitempty"`
}

// KeywordPayload extracts the value following the first keyword found within
// MaxDistance characters of the anchor.
type KeywordPayload struct {
	Method      string   `json:"method"`
	Keywords    []string `json:"keywords"`
	MaxDistance int      `json:"maxDistance,omitempty"`
}

// PositionPayload extracts a column region from a layout line, with a small
// tolerance for documents whose layout shifts by a line or two.
type PositionPayload struct {
	Method        string `json:"method"`
	Line          int    `json:"line"`
	LineTolerance int    `json:"lineTolerance,omitempty"`
	CharStart     int    `json:"charStart"`
	CharEnd       int    `json:"charEnd"`
}

type payloadHeader struct {
	Method string `json:"method"`
}

// PayloadMethod reads the method discriminator without decoding the full
// payload.
func PayloadMethod(raw datatypes.JSON) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty pattern payload")
	}
	var h payloadHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return "", fmt.Errorf("decode pattern payload: %w", err)
	}
	if h.Method == "" {
		return "", fmt.Errorf("pattern payload missing method")
	}
	return h.Method, nil
}

func MarshalPayload(p any) (datatypes.JSON, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
