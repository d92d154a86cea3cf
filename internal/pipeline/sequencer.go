// Package pipeline implements the per-image analysis pipeline: the stage
// sequencer that drives the producer adapters in dependency order, the
// fusion engine that merges their confidence-scored outputs into one
// integrated analysis, and the listing synthesizer that templates the
// marketplace listing from the fused record.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/logger"
	"github.com/maribel/gemlens/internal/producer"
)

// StagesForMode returns the stage subset a processing mode runs, always a
// sub-sequence of domain.StageOrder so declared dependencies stay satisfied
// or absent, never reordered.
func StagesForMode(mode domain.ProcessingMode) []string {
	switch mode {
	case domain.ModeAdvanced:
		return []string{
			domain.StagePreprocessing,
			domain.StageDetection,
			domain.StageVision,
			domain.StageSegmentation,
			domain.StageSynthesis,
		}
	case domain.ModePremium:
		return append([]string(nil), domain.StageOrder...)
	default:
		return []string{
			domain.StagePreprocessing,
			domain.StageVision,
			domain.StageSynthesis,
		}
	}
}

// ProgressFunc receives the cumulative percent and the stage that just
// reached a terminal state.
type ProgressFunc func(percent int, stage string)

// Sequencer executes the stage list for one image, sequentially. Stages are
// deliberately not concurrent within an image: most consume the immediately
// prior outputs.
type Sequencer struct {
	adapters map[string]producer.Adapter
	log      *logger.Logger
}

// NewSequencer creates a sequencer over the given adapters.
func NewSequencer(adapters []producer.Adapter, log *logger.Logger) *Sequencer {
	byName := make(map[string]producer.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Sequencer{adapters: byName, log: log}
}

// Run executes the stages in order for one image and returns every stage's
// result. A failed stage does not abort the pipeline: its fallback result is
// recorded and later stages see the degraded input. The two hard aborts are
// a missing adapter (configuration error) and a failed preprocessing stage
// (the image itself is unusable); both return an error alongside the results
// collected so far.
func (s *Sequencer) Run(ctx context.Context, in *producer.Input, stages []string, progress ProgressFunc) ([]*domain.ProducerResult, error) {
	if in.Results == nil {
		in.Results = make(map[string]*domain.ProducerResult, len(stages))
	}
	ctx = s.log.WithContext(ctx)

	results := make([]*domain.ProducerResult, 0, len(stages))

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("pipeline canceled before stage %s: %w", stage, err)
		}

		adapter, ok := s.adapters[stage]
		if !ok {
			return results, fmt.Errorf("no adapter registered for stage %s", stage)
		}

		stageCtx := logger.SetStage(ctx, stage)
		start := time.Now()
		result := adapter.Run(stageCtx, in)
		if result == nil {
			// Defensive: an adapter must never return nil
			result = &domain.ProducerResult{
				Stage:        stage,
				ProcessingMs: time.Since(start).Milliseconds(),
				Error:        "adapter returned no result",
				Payload:      producer.FallbackPayload(stage),
			}
		}

		in.Results[stage] = result
		results = append(results, result)

		if result.Succeeded {
			logger.With(logger.Fields{
				logger.FieldDurationMs: result.ProcessingMs,
				logger.FieldConfidence: result.Confidence,
			}).Info(stageCtx, "Stage completed")
		} else {
			logger.With(logger.Fields{
				logger.FieldDurationMs: result.ProcessingMs,
			}).Warn(stageCtx, "Stage failed, continuing with fallback: %s", result.Error)
		}

		if progress != nil {
			progress((i+1)*100/len(stages), stage)
		}

		if stage == domain.StagePreprocessing && !result.Succeeded {
			return results, fmt.Errorf("preprocessing failed: %s", result.Error)
		}
	}

	return results, nil
}
