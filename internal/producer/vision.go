package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/prompts"
)

// VisionAdapter wraps the vision-language producer: one multimodal chat call
// that reads the photo plus the detector's regions and answers with a
// structured jewelry read.
type VisionAdapter struct {
	chat *ChatClient
}

// NewVisionAdapter creates the vision-language adapter.
func NewVisionAdapter(chat *ChatClient) *VisionAdapter {
	return &VisionAdapter{chat: chat}
}

func (a *VisionAdapter) Name() string { return domain.StageVision }

func (a *VisionAdapter) DependsOn() []string {
	return []string{domain.StageDetection}
}

type visionReply struct {
	Description     string `json:"description"`
	Category        string `json:"category"`
	Materials       []struct {
		Concept    string  `json:"concept"`
		Confidence float64 `json:"confidence"`
	} `json:"materials"`
	Gemstones []struct {
		Concept    string  `json:"concept"`
		Confidence float64 `json:"confidence"`
	} `json:"gemstones"`
	Concepts []struct {
		Concept    string  `json:"concept"`
		Confidence float64 `json:"confidence"`
	} `json:"concepts"`
	Era             string  `json:"era"`
	Design          string  `json:"design"`
	Aesthetic       string  `json:"aesthetic"`
	StyleConfidence float64 `json:"style_confidence"`
}

// Run analyzes the photograph with the restricting detections.
func (a *VisionAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	// The detector's regions focus the query; a failed detector contributes
	// an empty region list and the model reads the whole frame.
	regions := "[]"
	if prior := in.Prior(domain.StageDetection); prior != nil && prior.Payload.Detection != nil {
		if b, err := json.Marshal(prior.Payload.Detection.Detections); err == nil {
			regions = string(b)
		}
	}

	user := fmt.Sprintf(prompts.VisionUserPrompt, regions)
	reply, err := a.chat.CompleteWithImage(ctx, prompts.VisionSystemPrompt, user, in.ImageData, in.Format, 600)
	if err != nil {
		return failed(domain.StageVision, start, err)
	}

	var parsed visionReply
	if err := decodeJSONReply(reply, &parsed); err != nil {
		return failed(domain.StageVision, start, err)
	}
	if parsed.Category == "" {
		parsed.Category = "jewelry"
	}

	payload := domain.Payload{Vision: &domain.VisionPayload{
		Description: parsed.Description,
		Category:    parsed.Category,
		Materials:   toConceptScores(parsed.Materials),
		Gemstones:   toConceptScores(parsed.Gemstones),
		Concepts:    toConceptScores(parsed.Concepts),
		Era:         parsed.Era,
		Design:      parsed.Design,
		Aesthetic:   parsed.Aesthetic,
		StyleScore:  clamp01(parsed.StyleConfidence),
	}}

	// Stage confidence: the style read tempered by material evidence
	confidence := clamp01(parsed.StyleConfidence)
	if len(payload.Vision.Materials) > 0 {
		confidence = clamp01(0.5*confidence + 0.5*payload.Vision.Materials[0].Confidence)
	}

	return succeeded(domain.StageVision, start, confidence, payload)
}

func toConceptScores(items []struct {
	Concept    string  `json:"concept"`
	Confidence float64 `json:"confidence"`
}) []domain.ConceptScore {
	out := make([]domain.ConceptScore, 0, len(items))
	for _, item := range items {
		if item.Concept == "" {
			continue
		}
		out = append(out, domain.ConceptScore{
			Concept:    item.Concept,
			Confidence: clamp01(item.Confidence),
		})
	}
	return out
}
