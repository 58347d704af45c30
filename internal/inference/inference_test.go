package inference

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
)

func makeSamples(values ...string) []*types.CorrectionSample {
	out := make([]*types.CorrectionSample, 0, len(values))
	for _, v := range values {
		out = append(out, &types.CorrectionSample{
			ID:             uuid.New(),
			DocumentID:     uuid.New(),
			FieldName:      "invoice_number",
			CorrectedValue: v,
		})
	}
	return out
}

// makeDocs builds one document per sample with the corrected value behind a
// fixed label at a fixed layout position.
func makeDocs(samples []*types.CorrectionSample, label string) map[uuid.UUID]string {
	docs := make(map[uuid.UUID]string, len(samples))
	for _, s := range samples {
		docs[s.DocumentID] = fmt.Sprintf("ACME FREIGHT LTD\n%s: %s\nSome trailing text\n", label, s.CorrectedValue)
	}
	return docs
}

func TestInferRegexTemplate(t *testing.T) {
	in := Input{FieldName: "invoice_number", Samples: makeSamples("INV-1234", "INV-5678", "INV-9012")}
	c := InferRegex(in)
	if c == nil {
		t.Fatal("expected a regex candidate")
	}
	if c.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", c.Confidence)
	}
	p, ok := c.Payload.(types.RegexPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", c.Payload)
	}
	if p.Pattern != `[A-Z]{3}-\d{4}` {
		t.Fatalf("unexpected pattern %q", p.Pattern)
	}
}

func TestInferRegexTiedSignaturesDeterministic(t *testing.T) {
	// Two signature groups of equal size; the winner must be the same on
	// every run, not whichever map iteration yields first.
	first, _ := generalize([]string{"INV-1234", "abcd"})
	if first != `[A-Z]{3}-\d{4}` {
		t.Fatalf("unexpected tie winner %q", first)
	}
	for i := 0; i < 100; i++ {
		pattern, _ := generalize([]string{"INV-1234", "abcd"})
		if pattern != first {
			t.Fatalf("tie broke differently on run %d: %q vs %q", i, pattern, first)
		}
	}
}

func TestInferRegexIdenticalValues(t *testing.T) {
	in := Input{FieldName: "carrier_code", Samples: makeSamples("DHL", "DHL", "DHL")}
	c := InferRegex(in)
	if c == nil {
		t.Fatal("expected a regex candidate")
	}
	if c.Confidence != 1.0 || c.Complexity != 0 {
		t.Fatalf("expected literal template, got confidence=%v complexity=%d", c.Confidence, c.Complexity)
	}
}

func TestInferRegexMixedSignatures(t *testing.T) {
	in := Input{FieldName: "invoice_number", Samples: makeSamples("INV-1234", "INV-5678", "FREEFORM VALUE")}
	c := InferRegex(in)
	if c == nil {
		t.Fatal("expected a regex candidate")
	}
	if c.Confidence >= 1.0 {
		t.Fatalf("outlier should lower confidence, got %v", c.Confidence)
	}
	if c.Confidence < 0.6 {
		t.Fatalf("majority template should still cover two thirds, got %v", c.Confidence)
	}
}

func TestInferKeywordAnchor(t *testing.T) {
	samples := makeSamples("INV-1234", "INV-5678", "INV-9012")
	in := Input{
		FieldName: "invoice_number",
		Samples:   samples,
		DocText:   makeDocs(samples, "Invoice Number"),
	}
	c := InferKeyword(in)
	if c == nil {
		t.Fatal("expected a keyword candidate")
	}
	if c.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", c.Confidence)
	}
	p := c.Payload.(types.KeywordPayload)
	if len(p.Keywords) != 1 || p.Keywords[0] != "Invoice Number" {
		t.Fatalf("unexpected keywords %v", p.Keywords)
	}
}

func TestInferKeywordNoDocText(t *testing.T) {
	in := Input{FieldName: "invoice_number", Samples: makeSamples("INV-1234", "INV-5678")}
	if c := InferKeyword(in); c != nil {
		t.Fatalf("expected nil candidate without document text, got %+v", c)
	}
}

func TestInferPositionalStableOffset(t *testing.T) {
	samples := makeSamples("INV-1234", "INV-5678", "INV-9012")
	in := Input{
		FieldName: "invoice_number",
		Samples:   samples,
		DocText:   makeDocs(samples, "Invoice Number"),
	}
	c := InferPositional(in)
	if c == nil {
		t.Fatal("expected a positional candidate")
	}
	if c.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", c.Confidence)
	}
	p := c.Payload.(types.PositionPayload)
	if p.Line != 1 {
		t.Fatalf("expected line 1, got %d", p.Line)
	}
}

func TestInferSelectorPrefersSimplerOnTie(t *testing.T) {
	samples := makeSamples("INV-1234", "INV-5678", "INV-9012")
	in := Input{
		FieldName: "invoice_number",
		Samples:   samples,
		DocText:   makeDocs(samples, "Invoice Number"),
	}
	// All three strategies reach confidence 1.0 here with equal complexity;
	// the fixed strategy order must break the tie the same way every run.
	for i := 0; i < 5; i++ {
		rule, failure := Infer(in, 0.6)
		if failure != nil {
			t.Fatalf("unexpected failure: %+v", failure)
		}
		if rule.ExtractionType != types.ExtractionTypeRegex {
			t.Fatalf("run %d: expected regex winner, got %s", i, rule.ExtractionType)
		}
	}
}

func TestInferSelectorBelowFloor(t *testing.T) {
	in := Input{
		FieldName: "remarks",
		Samples:   makeSamples("alpha", "BRAVO-77", "x y z", "12345", "?!"),
	}
	rule, failure := Infer(in, 0.6)
	if rule != nil {
		t.Fatalf("expected no rule, got %+v", rule)
	}
	if failure == nil {
		t.Fatal("expected an inference failure")
	}
	if failure.BestConfidence >= 0.6 {
		t.Fatalf("best confidence should be below floor, got %v", failure.BestConfidence)
	}
	if len(failure.StrategyScores) == 0 {
		t.Fatal("expected per-strategy scores in failure")
	}
}
