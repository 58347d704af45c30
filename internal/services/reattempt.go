package services

import (
	"context"
	"time"

	"github.com/freightdesk/rulelearn-backend/internal/data/repos"
	"github.com/freightdesk/rulelearn-backend/internal/platform/dbctx"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

// ReattemptWorker periodically retries inference for candidate patterns whose
// last attempt fell below the confidence floor. New corrections may have
// arrived since, so a pattern that failed yesterday can clear the floor today.
type ReattemptWorker struct {
	log         *logger.Logger
	patterns    repos.CorrectionPatternRepo
	corrections CorrectionService

	interval  time.Duration
	threshold int
	batchSize int
}

func NewReattemptWorker(
	baseLog *logger.Logger,
	patterns repos.CorrectionPatternRepo,
	corrections CorrectionService,
	interval time.Duration,
	threshold int,
) *ReattemptWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReattemptWorker{
		log:         baseLog.With("service", "ReattemptWorker"),
		patterns:    patterns,
		corrections: corrections,
		interval:    interval,
		threshold:   threshold,
		batchSize:   25,
	}
}

// Start blocks until ctx is cancelled. Run it in its own goroutine.
func (w *ReattemptWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ReattemptWorker) tick(ctx context.Context) {
	patterns, err := w.patterns.ListReattemptable(dbctx.New(ctx, nil), w.threshold, w.batchSize)
	if err != nil {
		w.log.Error("list reattemptable patterns failed", "error", err.Error())
		return
	}
	if len(patterns) == 0 {
		return
	}
	w.log.Debug("reattempting inference", "patterns", len(patterns))
	for _, p := range patterns {
		if ctx.Err() != nil {
			return
		}
		suggestionID, err := w.corrections.AttemptInference(ctx, p.ID)
		if err != nil {
			w.log.Error("inference reattempt failed",
				"pattern_id", p.ID.String(),
				"error", err.Error(),
			)
			continue
		}
		if suggestionID != nil {
			w.log.Info("reattempt produced suggestion",
				"pattern_id", p.ID.String(),
				"suggestion_id", suggestionID.String(),
			)
		}
	}
}
