package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	"github.com/freightdesk/rulelearn-backend/internal/data/repos/testutil"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/simulation"
)

type testServices struct {
	tx *gorm.DB

	patterns    repos.CorrectionPatternRepo
	samples     repos.CorrectionSampleRepo
	suggestions repos.RuleSuggestionRepo
	activeRules repos.MappingRuleRepo
	versions    repos.RuleVersionRepo
	records     repos.ExtractionRecordRepo

	corrections CorrectionService
	review      SuggestionService
	rules       RuleService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	s := &testServices{
		tx:          tx,
		patterns:    repos.NewCorrectionPatternRepo(tx, log),
		samples:     repos.NewCorrectionSampleRepo(tx, log),
		suggestions: repos.NewRuleSuggestionRepo(tx, log),
		activeRules: repos.NewMappingRuleRepo(tx, log),
		versions:    repos.NewRuleVersionRepo(tx, log),
		records:     repos.NewExtractionRecordRepo(tx, log),
	}
	sim := simulation.NewEngine(NewRecordSource(s.records), log, 4, 0, 0)
	cache := NewNoopRuleCache()
	s.corrections = NewCorrectionService(tx, log, s.patterns, s.samples, s.suggestions, s.activeRules, s.records, sim, 3, 20, 0.6)
	s.review = NewSuggestionService(tx, log, s.suggestions, s.activeRules, s.versions, sim, cache)
	s.rules = NewRuleService(tx, log, s.activeRules, s.versions, cache)
	return s
}

func (s *testServices) seedPendingSuggestion(t *testing.T, sourceEntityID uuid.UUID, fieldName string, payload []byte) *types.RuleSuggestion {
	t.Helper()
	suggestion, err := s.suggestions.Create(dbctx.New(context.Background(), s.tx), &types.RuleSuggestion{
		ID:                      uuid.New(),
		SourceEntityID:          sourceEntityID,
		FieldName:               fieldName,
		ExtractionType:          types.ExtractionTypeKeyword,
		SuggestedPatternPayload: payload,
		Source:                  types.SuggestionSourceAutoLearning,
		Confidence:              0.92,
		CorrectionCount:         4,
		Status:                  types.SuggestionStatusPending,
	})
	if err != nil {
		t.Fatalf("seed suggestion: %v", err)
	}
	return suggestion
}

func (s *testServices) seedLineage(t *testing.T, sourceEntityID uuid.UUID, fieldName string, payload []byte) *types.MappingRule {
	t.Helper()
	ctx := context.Background()
	rule := testutil.SeedActiveRule(t, ctx, s.tx, sourceEntityID, fieldName, payload, 1)
	if _, err := s.versions.Append(dbctx.New(ctx, s.tx), &types.RuleVersion{
		RuleID:         rule.LineageID,
		Version:        1,
		ExtractionType: rule.ExtractionType,
		PatternPayload: payload,
		Confidence:     rule.Confidence,
		ChangeReason:   "seeded default rule",
		CreatedBy:      "system",
	}); err != nil {
		t.Fatalf("seed version: %v", err)
	}
	return rule
}

var (
	keywordPayload = []byte(`{"method":"keyword","keywords":["Invoice Number"],"maxDistance":80}`)
	regexV1Payload = []byte(`{"method":"regex","pattern":"INV-(\\d{4})","groupIndex":1}`)
)

func TestCorrectionThresholdCreatesOneSuggestion(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	recs := testutil.SeedExtractionRecords(t, ctx, s.tx, sourceEntityID, "invoice_number", 4, func(i int, rec *types.ExtractionRecord) {
		rec.RawText = fmt.Sprintf("ACME FREIGHT LTD\nInvoice Number: INV-%04d\nTotal Amount: 120.00\n", i)
	})

	var state *types.PatternState
	for i := 0; i < 3; i++ {
		var err error
		state, err = s.corrections.Record(ctx, RecordCorrectionInput{
			SourceEntityID: sourceEntityID,
			FieldName:      "invoice_number",
			DocumentID:     recs[i].DocumentID,
			CorrectedValue: fmt.Sprintf("INV-%04d", i),
			CorrectedAt:    time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	if !state.ThresholdCrossed {
		t.Fatal("third correction must cross the threshold")
	}
	if state.SuggestionID == nil {
		t.Fatal("threshold crossing must report the created suggestion")
	}
	if state.Status != types.PatternStatusSuggested {
		t.Fatalf("expected suggested pattern, got %s", state.Status)
	}

	// A fourth correction keeps counting but must not create a second
	// suggestion.
	state, err := s.corrections.Record(ctx, RecordCorrectionInput{
		SourceEntityID: sourceEntityID,
		FieldName:      "invoice_number",
		DocumentID:     recs[3].DocumentID,
		CorrectedValue: "INV-0003",
		CorrectedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Record after promotion: %v", err)
	}
	if state.ThresholdCrossed {
		t.Fatal("promotion must be edge triggered, not repeated")
	}
	if state.OccurrenceCount != 4 {
		t.Fatalf("expected occurrence count 4, got %d", state.OccurrenceCount)
	}

	out, err := s.review.List(ctx, repos.SuggestionFilter{SourceEntityID: sourceEntityID, FieldName: "invoice_number"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly one suggestion, got %d", len(out))
	}
	if out[0].Status != types.SuggestionStatusPending {
		t.Fatalf("expected pending suggestion, got %s", out[0].Status)
	}
	if out[0].CorrectionCount != 3 {
		t.Fatalf("expected correction count 3 at creation time, got %d", out[0].CorrectionCount)
	}
}

func TestApproveSwapsActiveRule(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	old := s.seedLineage(t, sourceEntityID, "invoice_number", regexV1Payload)
	suggestion := s.seedPendingSuggestion(t, sourceEntityID, "invoice_number", keywordPayload)

	deployed, err := s.review.Approve(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com", Notes: "looks safe"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if deployed.Version != 2 {
		t.Fatalf("expected version 2, got %d", deployed.Version)
	}
	if deployed.LineageID != old.LineageID {
		t.Fatal("deployment must stay on the existing lineage")
	}
	if deployed.ExtractionType != types.ExtractionTypeKeyword {
		t.Fatalf("expected keyword rule deployed, got %s", deployed.ExtractionType)
	}

	dbc := dbctx.New(ctx, s.tx)
	prev, err := s.activeRules.GetByID(dbc, old.ID)
	if err != nil {
		t.Fatalf("GetByID old rule: %v", err)
	}
	if prev.Status != types.RuleStatusDeprecated {
		t.Fatalf("old rule must be deprecated, got %s", prev.Status)
	}

	active, err := s.activeRules.GetActiveByKey(dbc, sourceEntityID, "invoice_number", false)
	if err != nil {
		t.Fatalf("GetActiveByKey: %v", err)
	}
	if active == nil || active.ID != deployed.ID {
		t.Fatal("deployed rule must be the single active row for the key")
	}

	v2, err := s.versions.GetByLineageAndVersion(dbc, old.LineageID, 2)
	if err != nil {
		t.Fatalf("GetByLineageAndVersion: %v", err)
	}
	if v2 == nil {
		t.Fatal("approval must append version 2 to the history")
	}
	if v2.SuggestionID == nil || *v2.SuggestionID != suggestion.ID {
		t.Fatal("version 2 must link back to the approved suggestion")
	}

	reviewed, err := s.review.Get(ctx, suggestion.ID)
	if err != nil {
		t.Fatalf("Get suggestion: %v", err)
	}
	if reviewed.Status != types.SuggestionStatusApproved {
		t.Fatalf("expected approved suggestion, got %s", reviewed.Status)
	}

	// Approving a settled suggestion must be refused.
	_, err = s.review.Approve(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com"})
	var transition *types.InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if transition.Current != types.SuggestionStatusApproved {
		t.Fatalf("expected current status approved, got %s", transition.Current)
	}
}

func TestApproveFirstRuleForKey(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	suggestion := s.seedPendingSuggestion(t, sourceEntityID, "total_amount", keywordPayload)

	deployed, err := s.review.Approve(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if deployed.Version != 1 {
		t.Fatalf("first rule for a key must be version 1, got %d", deployed.Version)
	}
	if deployed.LineageID != deployed.ID {
		t.Fatal("new lineage must adopt the rule's own id")
	}

	latest, err := s.versions.LatestVersion(dbctx.New(ctx, s.tx), deployed.LineageID)
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if latest != 1 {
		t.Fatalf("expected version history at 1, got %d", latest)
	}
}

func TestRejectTaxonomy(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	suggestion := s.seedPendingSuggestion(t, sourceEntityID, "invoice_number", keywordPayload)

	_, err := s.review.Reject(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com", Reason: "vibes", Detail: "not a real reason"})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for an unknown reason, got %v", err)
	}

	// The free-text detail is mandatory; a blank one must be refused before
	// anything is persisted.
	_, err = s.review.Reject(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com", Reason: types.RejectReasonPoorAccuracy})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a missing detail, got %v", err)
	}
	_, err = s.review.Reject(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com", Reason: types.RejectReasonPoorAccuracy, Detail: "   "})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a blank detail, got %v", err)
	}
	still, err := s.review.Get(ctx, suggestion.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if still.Status != types.SuggestionStatusPending {
		t.Fatalf("refused rejection must leave the suggestion pending, got %s", still.Status)
	}

	rejected, err := s.review.Reject(ctx, suggestion.ID, ReviewInput{
		Actor:  "reviewer@example.com",
		Reason: types.RejectReasonPoorAccuracy,
		Detail: "mismatched two holdout documents",
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != types.SuggestionStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != types.RejectReasonPoorAccuracy {
		t.Fatal("expected the rejection reason persisted")
	}
	if rejected.RejectionDetail == nil || *rejected.RejectionDetail != "mismatched two holdout documents" {
		t.Fatal("expected the rejection detail persisted")
	}

	// Terminal states refuse further transitions.
	_, err = s.review.Reject(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com", Reason: types.RejectReasonDuplicate, Detail: "same key as an earlier suggestion"})
	var transition *types.InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	_, err = s.review.Approve(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com"})
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError on approving rejected, got %v", err)
	}
}

func TestRollbackRoundTrip(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	lineage := s.seedLineage(t, sourceEntityID, "invoice_number", regexV1Payload)
	suggestion := s.seedPendingSuggestion(t, sourceEntityID, "invoice_number", keywordPayload)
	if _, err := s.review.Approve(ctx, suggestion.ID, ReviewInput{Actor: "reviewer@example.com"}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	deployed, err := s.rules.Rollback(ctx, lineage.LineageID, 1, "oncall@example.com")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if deployed.Version != 3 {
		t.Fatalf("rollback must append, expected version 3, got %d", deployed.Version)
	}
	if deployed.ExtractionType != types.ExtractionTypeRegex {
		t.Fatalf("expected the version 1 rule shape back, got %s", deployed.ExtractionType)
	}

	diff, err := s.rules.Compare(ctx, lineage.LineageID, 1, 3)
	if err != nil {
		t.Fatalf("Compare 1..3: %v", err)
	}
	if !diff.Identical {
		t.Fatal("rolled back payload must be identical to its target version")
	}

	diff, err = s.rules.Compare(ctx, lineage.LineageID, 2, 3)
	if err != nil {
		t.Fatalf("Compare 2..3: %v", err)
	}
	if diff.Identical {
		t.Fatal("versions 2 and 3 must differ")
	}
	if len(diff.Segments) == 0 {
		t.Fatal("expected diff segments for differing payloads")
	}

	history, err := s.rules.GetVersions(ctx, lineage.LineageID, 10)
	if err != nil {
		t.Fatalf("GetVersions: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(history))
	}
	for i, want := range []int{3, 2, 1} {
		if history[i].Version != want {
			t.Fatalf("expected version %d at position %d, got %d", want, i, history[i].Version)
		}
	}

	// Rolling back to the already active version is a no-op.
	again, err := s.rules.Rollback(ctx, lineage.LineageID, 3, "oncall@example.com")
	if err != nil {
		t.Fatalf("Rollback to current: %v", err)
	}
	if again.Version != 3 || again.ID != deployed.ID {
		t.Fatal("rollback to the active version must return the current rule unchanged")
	}
}

func TestRollbackUnknownVersion(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	lineage := s.seedLineage(t, sourceEntityID, "invoice_number", regexV1Payload)

	_, err := s.rules.Rollback(ctx, lineage.LineageID, 7, "oncall@example.com")
	if !errors.Is(err, types.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}

	_, err = s.rules.Compare(ctx, lineage.LineageID, 1, 7)
	if !errors.Is(err, types.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound from Compare, got %v", err)
	}
}

func TestResimulateLeavesSnapshotAlone(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	sourceEntityID := uuid.New()
	testutil.SeedExtractionRecords(t, ctx, s.tx, sourceEntityID, "invoice_number", 12, func(i int, rec *types.ExtractionRecord) {
		rec.RawText = fmt.Sprintf("Invoice Number: INV-%04d\n", i)
		rec.ExtractedValue = testutil.PtrStr("WRONG")
		rec.VerifiedValue = testutil.PtrStr(fmt.Sprintf("INV-%04d", i))
		rec.VerifiedConfidence = 0.9
	})
	suggestion := s.seedPendingSuggestion(t, sourceEntityID, "invoice_number", keywordPayload)

	result, err := s.review.Resimulate(ctx, suggestion.ID, types.SampleSpec{SampleSize: 50})
	if err != nil {
		t.Fatalf("Resimulate: %v", err)
	}
	if result.Improved != 12 {
		t.Fatalf("expected all 12 verified documents improved, got %d", result.Improved)
	}

	stored, err := s.review.Get(ctx, suggestion.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.ExpectedImpact) != 0 {
		t.Fatal("resimulation must not write the stored snapshot")
	}
}
