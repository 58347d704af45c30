package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
)

func SeedPattern(tb testing.TB, ctx context.Context, tx *gorm.DB, sourceEntityID uuid.UUID, fieldName string) *types.CorrectionPattern {
	tb.Helper()
	p := &types.CorrectionPattern{
		ID:             uuid.New(),
		SourceEntityID: sourceEntityID,
		FieldName:      fieldName,
		Status:         types.PatternStatusCandidate,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed pattern: %v", err)
	}
	return p
}

func SeedSample(tb testing.TB, ctx context.Context, tx *gorm.DB, patternID uuid.UUID, sourceEntityID uuid.UUID, fieldName, corrected string, at time.Time) *types.CorrectionSample {
	tb.Helper()
	s := &types.CorrectionSample{
		ID:             uuid.New(),
		PatternID:      patternID,
		SourceEntityID: sourceEntityID,
		FieldName:      fieldName,
		DocumentID:     uuid.New(),
		CorrectedValue: corrected,
		CorrectedAt:    at,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed sample: %v", err)
	}
	return s
}

func SeedActiveRule(tb testing.TB, ctx context.Context, tx *gorm.DB, sourceEntityID uuid.UUID, fieldName string, payload []byte, version int) *types.MappingRule {
	tb.Helper()
	id := uuid.New()
	r := &types.MappingRule{
		ID:             id,
		LineageID:      id,
		SourceEntityID: sourceEntityID,
		FieldName:      fieldName,
		ExtractionType: types.ExtractionTypeRegex,
		PatternPayload: payload,
		Confidence:     0.85,
		Version:        version,
		Status:         types.RuleStatusActive,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed rule: %v", err)
	}
	return r
}

func SeedExtractionRecords(tb testing.TB, ctx context.Context, tx *gorm.DB, sourceEntityID uuid.UUID, fieldName string, n int, build func(i int, rec *types.ExtractionRecord)) []*types.ExtractionRecord {
	tb.Helper()
	out := make([]*types.ExtractionRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := &types.ExtractionRecord{
			ID:             uuid.New(),
			DocumentID:     uuid.New(),
			SourceEntityID: sourceEntityID,
			FieldName:      fieldName,
			RawText:        fmt.Sprintf("Invoice Number: INV-%04d\n", i),
			DocumentDate:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		}
		if build != nil {
			build(i, rec)
		}
		if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
			tb.Fatalf("seed extraction record: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func PtrStr(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
