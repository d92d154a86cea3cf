package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/prompts"
)

// ReasonerAdapter runs the step-by-step valuation chain over the accumulated
// stage outputs.
type ReasonerAdapter struct {
	chat *ChatClient
}

// NewReasonerAdapter creates the reasoning adapter.
func NewReasonerAdapter(chat *ChatClient) *ReasonerAdapter {
	return &ReasonerAdapter{chat: chat}
}

func (a *ReasonerAdapter) Name() string { return domain.StageReasoning }

func (a *ReasonerAdapter) DependsOn() []string {
	return []string{domain.StageVision, domain.StageVectorStore}
}

type reasoningReply struct {
	Steps []struct {
		Step       string  `json:"step"`
		Reasoning  string  `json:"reasoning"`
		Confidence float64 `json:"confidence"`
	} `json:"steps"`
	Conclusion    string   `json:"conclusion"`
	PriceEstimate float64  `json:"price_estimate"`
	Authentic     bool     `json:"authentic"`
	Indicators    []string `json:"indicators"`
	Confidence    float64  `json:"confidence"`
}

// Run sends the dependency results as context and decodes the chain.
func (a *ReasonerAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	context_ := reasoningContext(in)
	reply, err := a.chat.Complete(ctx, prompts.ReasoningSystemPrompt, fmt.Sprintf(prompts.ReasoningUserPrompt, context_), 900)
	if err != nil {
		return failed(domain.StageReasoning, start, err)
	}

	var parsed reasoningReply
	if err := decodeJSONReply(reply, &parsed); err != nil {
		return failed(domain.StageReasoning, start, err)
	}

	steps := make([]domain.ReasoningStep, 0, len(parsed.Steps))
	for _, s := range parsed.Steps {
		steps = append(steps, domain.ReasoningStep{
			Step:       s.Step,
			Reasoning:  s.Reasoning,
			Confidence: clamp01(s.Confidence),
		})
	}
	indicators := parsed.Indicators
	if indicators == nil {
		indicators = []string{}
	}

	payload := domain.Payload{Reasoning: &domain.ReasoningPayload{
		Steps:         steps,
		Conclusion:    parsed.Conclusion,
		PriceEstimate: parsed.PriceEstimate,
		Authentic:     parsed.Authentic,
		Indicators:    indicators,
	}}

	return succeeded(domain.StageReasoning, start, clamp01(parsed.Confidence), payload)
}

// reasoningContext serializes the dependency stages into the prompt context.
func reasoningContext(in *Input) string {
	ctx := map[string]interface{}{}
	if vis := in.Prior(domain.StageVision); vis != nil && vis.Payload.Vision != nil {
		ctx["vision"] = vis.Payload.Vision
	}
	if vs := in.Prior(domain.StageVectorStore); vs != nil && vs.Payload.VectorStore != nil {
		ctx["classification"] = vs.Payload.VectorStore
	}
	if sim := in.Prior(domain.StageSimilarity); sim != nil && sim.Payload.Similarity != nil {
		ctx["comparables"] = sim.Payload.Similarity
	}
	if seg := in.Prior(domain.StageSegmentation); seg != nil && seg.Payload.Segmentation != nil {
		ctx["condition"] = seg.Payload.Segmentation
	}

	b, err := json.Marshal(ctx)
	if err != nil {
		return "{}"
	}
	return string(b)
}
