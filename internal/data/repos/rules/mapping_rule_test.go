package rules

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos/testutil"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
)

var regexPayload = []byte(`{"method":"regex","pattern":"INV-(\\d{4})","groupIndex":1}`)

func TestMappingRuleRepoLineageBackfill(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.New(ctx, tx)
	repo := NewMappingRuleRepo(db, testutil.Logger(t))

	created, err := repo.Create(dbc, &types.MappingRule{
		ID:             uuid.New(),
		SourceEntityID: uuid.New(),
		FieldName:      "invoice_number",
		ExtractionType: types.ExtractionTypeRegex,
		PatternPayload: regexPayload,
		Confidence:     0.9,
		Version:        1,
		Status:         types.RuleStatusActive,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.LineageID != created.ID {
		t.Fatalf("first version lineage must equal its own id, got %s", created.LineageID)
	}

	got, err := repo.GetByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LineageID != created.ID {
		t.Fatalf("persisted lineage_id mismatch: %s", got.LineageID)
	}
}

func TestMappingRuleRepoActiveLookupAndDeprecate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.New(ctx, tx)
	repo := NewMappingRuleRepo(db, testutil.Logger(t))

	sourceEntityID := uuid.New()
	rule := testutil.SeedActiveRule(t, ctx, tx, sourceEntityID, "invoice_number", regexPayload, 1)

	active, err := repo.GetActiveByKey(dbc, sourceEntityID, "invoice_number", false)
	if err != nil {
		t.Fatalf("GetActiveByKey: %v", err)
	}
	if active == nil || active.ID != rule.ID {
		t.Fatal("expected seeded rule as the active row")
	}

	byLineage, err := repo.GetActiveByLineage(dbc, rule.LineageID, false)
	if err != nil {
		t.Fatalf("GetActiveByLineage: %v", err)
	}
	if byLineage == nil || byLineage.ID != rule.ID {
		t.Fatal("expected seeded rule via lineage lookup")
	}

	ok, err := repo.Deprecate(dbc, rule.ID)
	if err != nil {
		t.Fatalf("Deprecate: %v", err)
	}
	if !ok {
		t.Fatal("first Deprecate must report a row changed")
	}
	ok, err = repo.Deprecate(dbc, rule.ID)
	if err != nil {
		t.Fatalf("Deprecate again: %v", err)
	}
	if ok {
		t.Fatal("second Deprecate must lose the CAS")
	}

	active, err = repo.GetActiveByKey(dbc, sourceEntityID, "invoice_number", false)
	if err != nil {
		t.Fatalf("GetActiveByKey after deprecate: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active rule after deprecation, got %s", active.ID)
	}
}

func TestMappingRuleRepoSingleActivePerKey(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.New(ctx, tx)
	repo := NewMappingRuleRepo(db, testutil.Logger(t))

	sourceEntityID := uuid.New()
	first := testutil.SeedActiveRule(t, ctx, tx, sourceEntityID, "total_amount", regexPayload, 1)

	_, err := repo.Create(dbc, &types.MappingRule{
		ID:             uuid.New(),
		LineageID:      first.LineageID,
		SourceEntityID: sourceEntityID,
		FieldName:      "total_amount",
		ExtractionType: types.ExtractionTypeRegex,
		PatternPayload: regexPayload,
		Confidence:     0.9,
		Version:        2,
		Status:         types.RuleStatusActive,
	})
	if err == nil {
		t.Fatal("second active row for the same key must violate the partial unique index")
	}
}
