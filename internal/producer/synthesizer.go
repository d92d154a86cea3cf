package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/prompts"
)

// SynthesizerAdapter runs the multi-agent synthesis: a role ensemble
// (appraiser, historian, gemologist, copywriter) reviews every prior result
// and reports a consensus. It is the final and most authoritative stage.
type SynthesizerAdapter struct {
	chat *ChatClient
}

// NewSynthesizerAdapter creates the synthesis adapter.
func NewSynthesizerAdapter(chat *ChatClient) *SynthesizerAdapter {
	return &SynthesizerAdapter{chat: chat}
}

func (a *SynthesizerAdapter) Name() string { return domain.StageSynthesis }

func (a *SynthesizerAdapter) DependsOn() []string {
	return []string{domain.StageVision}
}

type synthesisReply struct {
	Agents []struct {
		Role       string  `json:"role"`
		Output     string  `json:"output"`
		Confidence float64 `json:"confidence"`
	} `json:"agents"`
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Price         float64  `json:"price"`
	Description   string   `json:"description"`
	BrandDetected bool     `json:"brand_detected"`
	BrandName     string   `json:"brand_name"`
	Hallmarks     []string `json:"hallmarks"`
	DemandLevel   string   `json:"demand_level"`
	Confidence    float64  `json:"confidence"`
}

// Run feeds every prior stage result to the ensemble and decodes the
// consensus.
func (a *SynthesizerAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	all, err := json.Marshal(in.Results)
	if err != nil {
		return failed(domain.StageSynthesis, start, fmt.Errorf("failed to serialize prior results: %w", err))
	}

	reply, err := a.chat.Complete(ctx, prompts.SynthesisSystemPrompt, fmt.Sprintf(prompts.SynthesisUserPrompt, string(all)), 1200)
	if err != nil {
		return failed(domain.StageSynthesis, start, err)
	}

	var parsed synthesisReply
	if err := decodeJSONReply(reply, &parsed); err != nil {
		return failed(domain.StageSynthesis, start, err)
	}
	if parsed.Category == "" {
		parsed.Category = "jewelry"
	}
	switch parsed.DemandLevel {
	case "low", "medium", "high":
	default:
		parsed.DemandLevel = "medium"
	}

	agents := make([]domain.AgentOutput, 0, len(parsed.Agents))
	for _, ag := range parsed.Agents {
		agents = append(agents, domain.AgentOutput{
			Role:       ag.Role,
			Output:     ag.Output,
			Confidence: clamp01(ag.Confidence),
		})
	}
	hallmarks := parsed.Hallmarks
	if hallmarks == nil {
		hallmarks = []string{}
	}

	payload := domain.Payload{Synthesis: &domain.SynthesisPayload{
		Agents:        agents,
		Category:      parsed.Category,
		Subcategory:   parsed.Subcategory,
		Price:         parsed.Price,
		Description:   parsed.Description,
		BrandDetected: parsed.BrandDetected,
		BrandName:     parsed.BrandName,
		Hallmarks:     hallmarks,
		DemandLevel:   parsed.DemandLevel,
	}}

	return succeeded(domain.StageSynthesis, start, clamp01(parsed.Confidence), payload)
}
