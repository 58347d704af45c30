package rules

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos/testutil"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
)

func appendVersion(t *testing.T, repo RuleVersionRepo, dbc dbctx.Context, lineageID uuid.UUID, version int, reason string) *types.RuleVersion {
	t.Helper()
	v, err := repo.Append(dbc, &types.RuleVersion{
		ID:             uuid.New(),
		RuleID:         lineageID,
		Version:        version,
		ExtractionType: types.ExtractionTypeRegex,
		PatternPayload: regexPayload,
		Confidence:     0.9,
		ChangeReason:   reason,
		CreatedBy:      "system",
	})
	if err != nil {
		t.Fatalf("Append version %d: %v", version, err)
	}
	return v
}

func TestRuleVersionRepoHistory(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.New(ctx, tx)
	repo := NewRuleVersionRepo(db, testutil.Logger(t))

	lineageID := uuid.New()

	latest, err := repo.LatestVersion(dbc, lineageID)
	if err != nil {
		t.Fatalf("LatestVersion on empty lineage: %v", err)
	}
	if latest != 0 {
		t.Fatalf("empty lineage must report version 0, got %d", latest)
	}

	appendVersion(t, repo, dbc, lineageID, 1, "seeded default rule")
	appendVersion(t, repo, dbc, lineageID, 2, "approved suggestion")
	appendVersion(t, repo, dbc, lineageID, 3, "rollback to version 1")

	latest, err = repo.LatestVersion(dbc, lineageID)
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if latest != 3 {
		t.Fatalf("expected latest version 3, got %d", latest)
	}

	history, err := repo.ListByLineage(dbc, lineageID, 0)
	if err != nil {
		t.Fatalf("ListByLineage: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(history))
	}
	for i, want := range []int{3, 2, 1} {
		if history[i].Version != want {
			t.Fatalf("expected version %d at position %d, got %d", want, i, history[i].Version)
		}
	}

	v2, err := repo.GetByLineageAndVersion(dbc, lineageID, 2)
	if err != nil {
		t.Fatalf("GetByLineageAndVersion: %v", err)
	}
	if v2 == nil || v2.ChangeReason != "approved suggestion" {
		t.Fatal("expected version 2 with its change reason")
	}

	missing, err := repo.GetByLineageAndVersion(dbc, lineageID, 9)
	if err != nil {
		t.Fatalf("GetByLineageAndVersion missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for a version that was never written")
	}
}

func TestRuleVersionRepoRejectsDuplicateVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.New(ctx, tx)
	repo := NewRuleVersionRepo(db, testutil.Logger(t))

	lineageID := uuid.New()
	appendVersion(t, repo, dbc, lineageID, 1, "seeded default rule")

	_, err := repo.Append(dbc, &types.RuleVersion{
		ID:             uuid.New(),
		RuleID:         lineageID,
		Version:        1,
		ExtractionType: types.ExtractionTypeRegex,
		PatternPayload: regexPayload,
		CreatedBy:      "system",
	})
	if err == nil {
		t.Fatal("duplicate (rule_id, version) must be rejected")
	}
}
