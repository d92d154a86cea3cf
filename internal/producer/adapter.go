// Package producer contains the analysis producer adapters. Each adapter
// wraps one external capability (detection, vision-language, segmentation,
// similarity search, vector store, reasoning, synthesis) behind a uniform
// contract: Run never returns an error and never panics past its boundary;
// failures come back as a ProducerResult with Succeeded=false, Confidence=0,
// and a deterministic fallback payload, so downstream fusion needs no
// nil-checks, only near-zero weighting.
package producer

import (
	"context"
	"time"

	"github.com/maribel/gemlens/internal/domain"
)

// Input is what one adapter invocation sees: the image plus every prior
// stage's result, keyed by stage name. Adapters only read the stages they
// declare in DependsOn.
type Input struct {
	ImageData  []byte
	Format     string
	Filename   string
	UserID     string
	AnalysisID string
	Results    map[string]*domain.ProducerResult
}

// Prior returns a dependency stage's result, or nil when the stage did not
// run in the current mode.
func (in *Input) Prior(stage string) *domain.ProducerResult {
	if in.Results == nil {
		return nil
	}
	return in.Results[stage]
}

// Adapter is one analysis producer. Implementations must be safe for
// concurrent use across images.
type Adapter interface {
	Name() string
	DependsOn() []string
	Run(ctx context.Context, in *Input) *domain.ProducerResult
}

// succeeded builds the result for a successful stage invocation.
func succeeded(stage string, start time.Time, confidence float64, payload domain.Payload) *domain.ProducerResult {
	return &domain.ProducerResult{
		Stage:        stage,
		Confidence:   clamp01(confidence),
		Succeeded:    true,
		ProcessingMs: time.Since(start).Milliseconds(),
		Payload:      payload,
	}
}

// failed builds the result for a failed stage invocation: confidence zero
// plus the stage's fallback payload.
func failed(stage string, start time.Time, err error) *domain.ProducerResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &domain.ProducerResult{
		Stage:        stage,
		Confidence:   0,
		Succeeded:    false,
		ProcessingMs: time.Since(start).Milliseconds(),
		Error:        msg,
		Payload:      FallbackPayload(stage),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
