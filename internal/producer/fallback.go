package producer

import "github.com/maribel/gemlens/internal/domain"

// FallbackPayload returns the deterministic minimal payload for a failed
// stage. Every key the fusion engine reads is present; lists are empty, the
// category is the generic "jewelry", and nothing carries confidence.
func FallbackPayload(stage string) domain.Payload {
	switch stage {
	case domain.StagePreprocessing:
		return domain.Payload{Preprocess: &domain.PreprocessPayload{
			Format: "unknown",
		}}
	case domain.StageDetection:
		return domain.Payload{Detection: &domain.DetectionPayload{
			Detections: []domain.Detection{},
			Category:   "jewelry",
		}}
	case domain.StageVision:
		return domain.Payload{Vision: &domain.VisionPayload{
			Description: "",
			Category:    "jewelry",
			Materials:   []domain.ConceptScore{},
			Gemstones:   []domain.ConceptScore{},
			Concepts:    []domain.ConceptScore{},
			Era:         "unknown",
		}}
	case domain.StageSegmentation:
		return domain.Payload{Segmentation: &domain.SegmentationPayload{
			Masks:          []domain.SegmentMask{},
			ConditionHint:  "good",
			ConditionScore: 70,
		}}
	case domain.StageSimilarity:
		return domain.Payload{Similarity: &domain.SimilarityPayload{
			SimilarItems: []domain.SimilarItem{},
		}}
	case domain.StageVectorStore:
		return domain.Payload{VectorStore: &domain.VectorStorePayload{
			Category: "jewelry",
		}}
	case domain.StageReasoning:
		return domain.Payload{Reasoning: &domain.ReasoningPayload{
			Steps:      []domain.ReasoningStep{},
			Indicators: []string{},
		}}
	case domain.StageSynthesis:
		return domain.Payload{Synthesis: &domain.SynthesisPayload{
			Agents:      []domain.AgentOutput{},
			Category:    "jewelry",
			DemandLevel: "medium",
			Hallmarks:   []string{},
		}}
	}
	return domain.Payload{}
}
