package simulation

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type memorySource struct {
	records []*types.ExtractionRecord
}

func (m memorySource) SampleRecords(_ context.Context, _ uuid.UUID, _ string, spec types.SampleSpec) ([]*types.ExtractionRecord, error) {
	out := make([]*types.ExtractionRecord, 0, len(m.records))
	for _, rec := range m.records {
		if !spec.IncludeUnverified && rec.VerifiedValue == nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DocumentID.String() < out[j].DocumentID.String()
	})
	if len(out) > spec.SampleSize {
		out = out[:spec.SampleSize]
	}
	return out, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func ptr(s string) *string { return &s }

// buildRecords makes n documents where the invoice number sits behind the
// "Invoice No" label. verified controls how many carry a verified value.
func buildRecords(n int, month time.Month) []*types.ExtractionRecord {
	out := make([]*types.ExtractionRecord, 0, n)
	for i := 0; i < n; i++ {
		val := fmt.Sprintf("INV-%04d", i)
		out = append(out, &types.ExtractionRecord{
			ID:             uuid.New(),
			DocumentID:     uuid.New(),
			SourceEntityID: uuid.Nil,
			FieldName:      "invoice_number",
			RawText:        fmt.Sprintf("ACME LTD\nInvoice No: %s\n", val),
			ExtractedValue: ptr("WRONG-" + val),
			VerifiedValue:  ptr(val),
			VerifiedConfidence: 0.9,
			DocumentDate:   time.Date(2026, month, 1+i%28, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

var (
	goodPayload = datatypes.JSON([]byte(`{"method":"keyword","keywords":["Invoice No"],"maxDistance":30}`))
	badPayload  = datatypes.JSON([]byte(`{"method":"regex","pattern":"NOPE-\\d+"}`))
)

func TestSimulateClassificationPartition(t *testing.T) {
	records := buildRecords(30, time.March)
	eng := NewEngine(memorySource{records: records}, testLogger(t), 4, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		SuggestionID:     uuid.New(),
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 30},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if got := res.Improved + res.Regressed + res.Unchanged + res.ExcludedCount; got != 30 {
		t.Fatalf("classification must partition the sample: got %d of 30", got)
	}
	// No current rule: every doc the suggested payload gets right is improved.
	if res.Improved != 30 || res.Regressed != 0 {
		t.Fatalf("expected 30 improved / 0 regressed, got %d / %d", res.Improved, res.Regressed)
	}
	if res.TotalAffected != 30 {
		t.Fatalf("expected totalAffected 30, got %d", res.TotalAffected)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	records := buildRecords(25, time.April)
	eng := NewEngine(memorySource{records: records}, testLogger(t), 8, 0, 0)

	req := Request{
		SuggestionID:     uuid.New(),
		FieldName:        "invoice_number",
		CurrentPayload:   badPayload,
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 25},
	}
	first, err := eng.Simulate(context.Background(), req)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	second, err := eng.Simulate(context.Background(), req)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	first.ComputedAt = second.ComputedAt
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical spec over unchanged data must produce identical results")
	}
}

func TestSimulateRegressionRiskCases(t *testing.T) {
	records := buildRecords(10, time.May)
	// The current rule extracts correctly; the candidate extracts nothing, so
	// every verified doc regresses.
	eng := NewEngine(memorySource{records: records}, testLogger(t), 2, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		SuggestionID:     uuid.New(),
		FieldName:        "invoice_number",
		CurrentPayload:   goodPayload,
		SuggestedPayload: badPayload,
		Spec:             types.SampleSpec{SampleSize: 10},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Regressed != 10 {
		t.Fatalf("expected 10 regressed, got %d", res.Regressed)
	}
	if len(res.RiskCases) != 10 {
		t.Fatalf("expected 10 risk cases, got %d", len(res.RiskCases))
	}
	for _, rc := range res.RiskCases {
		if rc.RiskLevel != types.RiskLevelHigh {
			t.Fatalf("verified confidence 0.9 must be high risk, got %s", rc.RiskLevel)
		}
	}
}

func TestSimulateRiskLevelLowForEmptyPrior(t *testing.T) {
	records := buildRecords(5, time.June)
	for _, rec := range records {
		rec.ExtractedValue = nil
	}
	eng := NewEngine(memorySource{records: records}, testLogger(t), 2, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		CurrentPayload:   goodPayload,
		SuggestedPayload: badPayload,
		Spec:             types.SampleSpec{SampleSize: 10},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for _, rc := range res.RiskCases {
		if rc.RiskLevel != types.RiskLevelLow {
			t.Fatalf("empty prior value must be low risk, got %s", rc.RiskLevel)
		}
	}
}

func TestSimulateExcludesUnverified(t *testing.T) {
	records := buildRecords(20, time.July)
	for i, rec := range records {
		if i%2 == 0 {
			rec.VerifiedValue = nil
			rec.ExtractedValue = nil
		}
	}
	eng := NewEngine(memorySource{records: records}, testLogger(t), 4, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 20},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Improved != 10 {
		t.Fatalf("expected only verified docs evaluated, got improved=%d", res.Improved)
	}

	withUnverified, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 20, IncludeUnverified: true},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// Unverified docs with no extracted value either cannot be judged and are
	// excluded, keeping the partition auditable.
	if withUnverified.ExcludedCount != 10 {
		t.Fatalf("expected 10 excluded, got %d", withUnverified.ExcludedCount)
	}
}

func TestSimulateMalformedPayloadExcludes(t *testing.T) {
	records := buildRecords(8, time.August)
	eng := NewEngine(memorySource{records: records}, testLogger(t), 4, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: datatypes.JSON([]byte(`{"method":"regex","pattern":"(unclosed"}`)),
		Spec:             types.SampleSpec{SampleSize: 8},
	})
	if err != nil {
		t.Fatalf("per-document failures must not abort the run: %v", err)
	}
	if res.ExcludedCount != 8 {
		t.Fatalf("expected all docs excluded, got %d", res.ExcludedCount)
	}
}

func TestSimulateTimelineBuckets(t *testing.T) {
	records := append(buildRecords(6, time.January), buildRecords(6, time.February)...)
	eng := NewEngine(memorySource{records: records}, testLogger(t), 4, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 12},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(res.Timeline) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d", len(res.Timeline))
	}
	total := 0
	for _, b := range res.Timeline {
		if b.Affected != b.Improved+b.Regressed {
			t.Fatalf("bucket %s: affected %d != improved %d + regressed %d", b.Period, b.Affected, b.Improved, b.Regressed)
		}
		total += b.Affected
	}
	if total != res.TotalAffected {
		t.Fatalf("timeline total %d != totalAffected %d", total, res.TotalAffected)
	}
}

func TestSimulateClampsSampleSize(t *testing.T) {
	records := buildRecords(5, time.September)
	eng := NewEngine(memorySource{records: records}, testLogger(t), 4, 0, 0)

	res, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 2},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Spec.SampleSize != MinSampleSize {
		t.Fatalf("expected sample size clamped to %d, got %d", MinSampleSize, res.Spec.SampleSize)
	}

	res, err = eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 99999},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Spec.SampleSize != MaxSampleSize {
		t.Fatalf("expected sample size clamped to %d, got %d", MaxSampleSize, res.Spec.SampleSize)
	}
}

func TestSimulateConfiguredSampleBounds(t *testing.T) {
	records := buildRecords(5, time.September)
	eng := NewEngine(memorySource{records: records}, testLogger(t), 4, 50, 100)

	res, err := eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Spec.SampleSize != 50 {
		t.Fatalf("expected the configured default of 50, got %d", res.Spec.SampleSize)
	}

	res, err = eng.Simulate(context.Background(), Request{
		FieldName:        "invoice_number",
		SuggestedPayload: goodPayload,
		Spec:             types.SampleSpec{SampleSize: 500},
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Spec.SampleSize != 100 {
		t.Fatalf("expected the configured cap of 100, got %d", res.Spec.SampleSize)
	}
}
