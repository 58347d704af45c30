package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/extraction"
	"github.com/freightdesk/rulelearn-backend/internal/inference"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
	"github.com/freightdesk/rulelearn-backend/internal/simulation"
)

// RecordCorrectionInput is one human override arriving from the review UI.
type RecordCorrectionInput struct {
	SourceEntityID uuid.UUID
	FieldName      string
	DocumentID     uuid.UUID
	OriginalValue  *string
	CorrectedValue string
	CorrectedAt    time.Time
}

type CorrectionService interface {
	Record(ctx context.Context, in RecordCorrectionInput) (*types.PatternState, error)
	AttemptInference(ctx context.Context, patternID uuid.UUID) (*uuid.UUID, error)
}

type correctionService struct {
	db  *gorm.DB
	log *logger.Logger

	patterns    repos.CorrectionPatternRepo
	samples     repos.CorrectionSampleRepo
	suggestions repos.RuleSuggestionRepo
	activeRules repos.MappingRuleRepo
	records     repos.ExtractionRecordRepo

	sim *simulation.Engine

	threshold       int
	sampleWindow    int
	confidenceFloor float64
}

func NewCorrectionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	patterns repos.CorrectionPatternRepo,
	samples repos.CorrectionSampleRepo,
	suggestions repos.RuleSuggestionRepo,
	activeRules repos.MappingRuleRepo,
	records repos.ExtractionRecordRepo,
	sim *simulation.Engine,
	threshold int,
	sampleWindow int,
	confidenceFloor float64,
) CorrectionService {
	if threshold < 1 {
		threshold = 3
	}
	if sampleWindow < threshold {
		sampleWindow = 20
	}
	return &correctionService{
		db:              db,
		log:             baseLog.With("service", "CorrectionService"),
		patterns:        patterns,
		samples:         samples,
		suggestions:     suggestions,
		activeRules:     activeRules,
		records:         records,
		sim:             sim,
		threshold:       threshold,
		sampleWindow:    sampleWindow,
		confidenceFloor: confidenceFloor,
	}
}

// Record persists the sample and bumps the pattern counter in one transaction,
// then runs inference outside it when the occurrence threshold is reached.
// Identical corrections for the same document are still distinct samples; the
// caller decides what counts as a duplicate submission.
func (s *correctionService) Record(ctx context.Context, in RecordCorrectionInput) (*types.PatternState, error) {
	if in.SourceEntityID == uuid.Nil || in.FieldName == "" || in.DocumentID == uuid.Nil || in.CorrectedValue == "" {
		return nil, types.ErrInvalidArgument
	}
	if in.CorrectedAt.IsZero() {
		in.CorrectedAt = time.Now().UTC()
	}

	var (
		patternID uuid.UUID
		count     int
		status    string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		pattern, err := s.patterns.GetOrCreate(dbc, in.SourceEntityID, in.FieldName)
		if err != nil {
			return err
		}
		patternID = pattern.ID
		status = pattern.Status

		if _, err := s.samples.Create(dbc, &types.CorrectionSample{
			PatternID:      pattern.ID,
			SourceEntityID: in.SourceEntityID,
			FieldName:      in.FieldName,
			DocumentID:     in.DocumentID,
			OriginalValue:  in.OriginalValue,
			CorrectedValue: in.CorrectedValue,
			CorrectedAt:    in.CorrectedAt,
		}); err != nil {
			return err
		}
		count, err = s.patterns.IncrementOccurrence(dbc, pattern.ID)
		if err != nil {
			return err
		}
		return s.samples.PruneToWindow(dbc, pattern.ID, s.sampleWindow)
	})
	if err != nil {
		return nil, err
	}

	state := &types.PatternState{
		PatternID:       patternID,
		OccurrenceCount: count,
		Status:          status,
	}
	if count < s.threshold || status != types.PatternStatusCandidate {
		return state, nil
	}

	suggestionID, err := s.AttemptInference(ctx, patternID)
	if err != nil {
		// The correction itself is already committed; inference trouble is
		// reported, not propagated to the ingest caller.
		s.log.Error("inference attempt failed",
			"pattern_id", patternID.String(),
			"error", err.Error(),
		)
		return state, nil
	}
	if suggestionID != nil {
		state.ThresholdCrossed = true
		state.Status = types.PatternStatusSuggested
		state.SuggestionID = suggestionID
	}
	return state, nil
}

// AttemptInference runs the strategy selector over the pattern's recent
// samples and, when a candidate clears the floor, promotes the pattern and
// creates a pending suggestion. The candidate-to-suggested flip is a CAS, so
// concurrent attempts produce exactly one suggestion. Returns the suggestion
// id, or nil when nothing was created.
func (s *correctionService) AttemptInference(ctx context.Context, patternID uuid.UUID) (*uuid.UUID, error) {
	dbc := dbctx.New(ctx, nil)
	pattern, err := s.patterns.GetByID(dbc, patternID)
	if err != nil {
		return nil, err
	}
	if pattern == nil {
		return nil, types.ErrNotFound
	}
	if pattern.Status != types.PatternStatusCandidate {
		return nil, nil
	}

	samples, err := s.samples.Recent(dbc, pattern.ID, s.sampleWindow)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	docText, err := s.loadDocText(dbc, pattern, samples)
	if err != nil {
		return nil, err
	}

	inferred, failure := inference.Infer(inference.Input{
		FieldName: pattern.FieldName,
		Samples:   samples,
		DocText:   docText,
	}, s.confidenceFloor)
	if failure != nil {
		s.log.Info("inference below confidence floor",
			"pattern_id", pattern.ID.String(),
			"field_name", pattern.FieldName,
			"best_confidence", failure.BestConfidence,
		)
		return nil, s.patterns.SetInferenceOutcome(dbc, pattern.ID, true)
	}

	payload, err := types.MarshalPayload(inferred.Payload)
	if err != nil {
		return nil, err
	}
	current, err := s.activeRules.GetActiveByKey(dbc, pattern.SourceEntityID, pattern.FieldName, false)
	if err != nil {
		return nil, err
	}

	suggestion := &types.RuleSuggestion{
		PatternID:               &pattern.ID,
		SourceEntityID:          pattern.SourceEntityID,
		FieldName:               pattern.FieldName,
		ExtractionType:          inferred.ExtractionType,
		SuggestedPatternPayload: payload,
		Source:                  types.SuggestionSourceAutoLearning,
		Confidence:              inferred.Confidence,
		CorrectionCount:         pattern.OccurrenceCount,
		Status:                  types.SuggestionStatusPending,
	}
	if current != nil {
		suggestion.CurrentPatternPayload = current.PatternPayload
	}
	if raw, err := json.Marshal(sampleCases(samples)); err == nil {
		suggestion.SampleCases = raw
	}

	// Simulation is read-only, so the initial impact snapshot is computed
	// before the promoting transaction.
	impact, err := s.sim.Simulate(ctx, simulation.Request{
		SourceEntityID:   pattern.SourceEntityID,
		FieldName:        pattern.FieldName,
		CurrentPayload:   suggestion.CurrentPatternPayload,
		SuggestedPayload: payload,
	})
	if err != nil {
		s.log.Warn("initial impact simulation failed",
			"pattern_id", pattern.ID.String(),
			"error", err.Error(),
		)
	} else if raw, mErr := json.Marshal(impact); mErr == nil {
		suggestion.ExpectedImpact = raw
	}

	var created *uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.New(ctx, tx)
		won, err := s.patterns.MarkSuggested(txc, pattern.ID)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		if _, err := s.suggestions.Create(txc, suggestion); err != nil {
			return err
		}
		if err := s.patterns.SetInferenceOutcome(txc, pattern.ID, false); err != nil {
			return err
		}
		created = &suggestion.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created != nil {
		s.log.Info("suggestion created",
			"suggestion_id", created.String(),
			"pattern_id", pattern.ID.String(),
			"field_name", pattern.FieldName,
			"extraction_type", inferred.ExtractionType,
			"confidence", inferred.Confidence,
		)
	}
	return created, nil
}

func (s *correctionService) loadDocText(dbc dbctx.Context, pattern *types.CorrectionPattern, samples []*types.CorrectionSample) (map[uuid.UUID]string, error) {
	ids := make([]uuid.UUID, 0, len(samples))
	for _, sm := range samples {
		ids = append(ids, sm.DocumentID)
	}
	recs, err := s.records.GetByDocuments(dbc, pattern.SourceEntityID, pattern.FieldName, ids)
	if err != nil {
		return nil, err
	}
	docText := make(map[uuid.UUID]string, len(recs))
	for _, rec := range recs {
		if rec.RawText != "" {
			docText[rec.DocumentID] = rec.RawText
		}
	}
	return docText, nil
}

// sampleCase is the denormalized review display shape stored on a suggestion.
type sampleCase struct {
	DocumentID      uuid.UUID `json:"document_id"`
	OriginalValue   *string   `json:"original_value,omitempty"`
	CorrectedValue  string    `json:"corrected_value"`
	NormalizedValue string    `json:"normalized_value"`
	CorrectedAt     time.Time `json:"corrected_at"`
}

const maxSampleCases = 10

func sampleCases(samples []*types.CorrectionSample) []sampleCase {
	out := make([]sampleCase, 0, maxSampleCases)
	for _, sm := range samples {
		if len(out) == maxSampleCases {
			break
		}
		out = append(out, sampleCase{
			DocumentID:      sm.DocumentID,
			OriginalValue:   sm.OriginalValue,
			CorrectedValue:  sm.CorrectedValue,
			NormalizedValue: extraction.Normalize(sm.FieldName, sm.CorrectedValue),
			CorrectedAt:     sm.CorrectedAt,
		})
	}
	return out
}
