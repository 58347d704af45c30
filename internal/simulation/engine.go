// Package simulation replays the current and candidate rule payloads over a
// deterministic sample of historical documents and measures the difference
// before anything is deployed.
package simulation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	types "github.com/freightdesk/rulelearn-backend/internal/domain"
	"github.com/freightdesk/rulelearn-backend/internal/extraction"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

const (
	MinSampleSize     = 10
	DefaultSampleSize = 200
	MaxSampleSize     = 1000

	maxRiskCases = 20
)

// DocumentSource selects historical extraction records for one rule key,
// ordered by document id so repeated runs see the same sample.
type DocumentSource interface {
	SampleRecords(ctx context.Context, sourceEntityID uuid.UUID, fieldName string, spec types.SampleSpec) ([]*types.ExtractionRecord, error)
}

// Request carries everything one simulation run needs. CurrentPayload is nil
// when no rule exists for the key yet; the current result is then always
// empty, matching an engine that extracts nothing.
type Request struct {
	SuggestionID     uuid.UUID
	SourceEntityID   uuid.UUID
	FieldName        string
	CurrentPayload   datatypes.JSON
	SuggestedPayload datatypes.JSON
	Spec             types.SampleSpec
}

type Engine struct {
	src     DocumentSource
	log     *logger.Logger
	workers int

	defaultSample int
	maxSample     int
}

// NewEngine builds an engine with the given worker fan-out and sample bounds.
// Zero sample bounds fall back to the package defaults.
func NewEngine(src DocumentSource, baseLog *logger.Logger, workers, defaultSample, maxSample int) *Engine {
	if workers < 1 {
		workers = 1
	}
	if defaultSample < MinSampleSize {
		defaultSample = DefaultSampleSize
	}
	if maxSample < defaultSample {
		maxSample = MaxSampleSize
	}
	return &Engine{
		src:           src,
		log:           baseLog.With("component", "SimulationEngine"),
		workers:       workers,
		defaultSample: defaultSample,
		maxSample:     maxSample,
	}
}

type docOutcome struct {
	excluded  bool
	improved  bool
	regressed bool

	riskLevel      string
	riskReason     string
	currentValue   string
	suggestedValue string
	expectedValue  string
}

// Simulate is read-only and side-effect free: it never touches the snapshot
// stored on the suggestion. Per-document failures are excluded and counted,
// never aborting the batch.
func (e *Engine) Simulate(ctx context.Context, req Request) (*types.ImpactAnalysisResult, error) {
	spec := e.clampSpec(req.Spec)

	records, err := e.src.SampleRecords(ctx, req.SourceEntityID, req.FieldName, spec)
	if err != nil {
		return nil, err
	}

	outcomes := make([]docOutcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range records {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			outcomes[i] = e.evaluate(req, records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Aggregation runs in record order regardless of which worker finished
	// first, keeping risk case selection and counts deterministic.
	result := &types.ImpactAnalysisResult{
		SuggestionID: req.SuggestionID,
		Spec:         spec,
		ComputedAt:   time.Now().UTC(),
	}
	buckets := map[string]*types.TimelineBucket{}
	var order []string
	for i, o := range outcomes {
		if o.excluded {
			result.ExcludedCount++
			continue
		}
		switch {
		case o.improved:
			result.Improved++
		case o.regressed:
			result.Regressed++
			if len(result.RiskCases) < maxRiskCases {
				result.RiskCases = append(result.RiskCases, types.RiskCase{
					DocumentID:     records[i].DocumentID,
					RiskLevel:      o.riskLevel,
					Reason:         o.riskReason,
					CurrentValue:   o.currentValue,
					SuggestedValue: o.suggestedValue,
					ExpectedValue:  o.expectedValue,
				})
			}
		default:
			result.Unchanged++
		}
		if o.improved || o.regressed {
			period := records[i].DocumentDate.Format("2006-01")
			b, ok := buckets[period]
			if !ok {
				b = &types.TimelineBucket{Period: period}
				buckets[period] = b
				order = append(order, period)
			}
			b.Affected++
			if o.improved {
				b.Improved++
			} else {
				b.Regressed++
			}
		}
	}
	result.TotalAffected = result.Improved + result.Regressed
	sort.Strings(order)
	for _, period := range order {
		result.Timeline = append(result.Timeline, *buckets[period])
	}

	e.log.Debug("simulation complete",
		"suggestion_id", req.SuggestionID.String(),
		"sampled", len(records),
		"improved", result.Improved,
		"regressed", result.Regressed,
		"unchanged", result.Unchanged,
		"excluded", result.ExcludedCount,
	)
	return result, nil
}

func (e *Engine) evaluate(req Request, rec *types.ExtractionRecord) docOutcome {
	expected, ok := expectedValue(req.FieldName, rec)
	if !ok {
		return docOutcome{excluded: true}
	}

	currentVal := ""
	if len(req.CurrentPayload) > 0 {
		v, err := extraction.Apply(req.CurrentPayload, req.FieldName, rec.RawText)
		if err != nil {
			return docOutcome{excluded: true}
		}
		currentVal = v
	}
	suggestedVal, err := extraction.Apply(req.SuggestedPayload, req.FieldName, rec.RawText)
	if err != nil {
		return docOutcome{excluded: true}
	}

	currentRight := currentVal == expected
	suggestedRight := suggestedVal == expected

	o := docOutcome{
		improved:       !currentRight && suggestedRight,
		regressed:      currentRight && !suggestedRight,
		currentValue:   currentVal,
		suggestedValue: suggestedVal,
		expectedValue:  expected,
	}
	if o.regressed {
		o.riskLevel, o.riskReason = riskLevel(rec)
	}
	return o
}

// expectedValue resolves the known-correct value for a record. Verified values
// win; unverified records fall back to the originally extracted value when the
// spec includes them, and are otherwise excluded.
func expectedValue(fieldName string, rec *types.ExtractionRecord) (string, bool) {
	if rec.VerifiedValue != nil && strings.TrimSpace(*rec.VerifiedValue) != "" {
		return extraction.Normalize(fieldName, *rec.VerifiedValue), true
	}
	if rec.ExtractedValue != nil && strings.TrimSpace(*rec.ExtractedValue) != "" {
		return extraction.Normalize(fieldName, *rec.ExtractedValue), true
	}
	return "", false
}

func riskLevel(rec *types.ExtractionRecord) (string, string) {
	if rec.ExtractedValue == nil || strings.TrimSpace(*rec.ExtractedValue) == "" {
		return types.RiskLevelLow, "prior value was empty"
	}
	if rec.VerifiedValue != nil && rec.VerifiedConfidence >= 0.8 {
		return types.RiskLevelHigh, "prior value verified with high confidence"
	}
	return types.RiskLevelMedium, "prior value had low verification confidence"
}

// clampSpec degrades out-of-range sample sizes instead of failing the run.
func (e *Engine) clampSpec(spec types.SampleSpec) types.SampleSpec {
	if spec.SampleSize <= 0 {
		spec.SampleSize = e.defaultSample
	}
	if spec.SampleSize < MinSampleSize {
		spec.SampleSize = MinSampleSize
	}
	if spec.SampleSize > e.maxSample {
		spec.SampleSize = e.maxSample
	}
	return spec
}
