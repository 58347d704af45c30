package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/simulation"
)

// recordSource adapts the extraction record repo to the simulation engine's
// document source.
type recordSource struct {
	records repos.ExtractionRecordRepo
}

func NewRecordSource(records repos.ExtractionRecordRepo) simulation.DocumentSource {
	return recordSource{records: records}
}

func (r recordSource) SampleRecords(ctx context.Context, sourceEntityID uuid.UUID, fieldName string, spec types.SampleSpec) ([]*types.ExtractionRecord, error) {
	return r.records.SampleForKey(dbctx.New(ctx, nil), sourceEntityID, fieldName, spec)
}
