package producer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maribel/gemlens/internal/domain"
)

// SegmenterAdapter wraps the segmentation service. Masks drive the surface
// condition read: high mask stability on the primary object suggests a clean,
// undamaged piece.
type SegmenterAdapter struct {
	client   *resty.Client
	endpoint string
	model    string
}

// SegmenterConfig holds configuration for the segmentation service.
type SegmenterConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewSegmenterAdapter creates the segmentation adapter.
func NewSegmenterAdapter(cfg *SegmenterConfig) *SegmenterAdapter {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(45 * time.Second)
	}

	return &SegmenterAdapter{
		client:   client,
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/") + "/segment",
		model:    cfg.Model,
	}
}

func (a *SegmenterAdapter) Name() string { return domain.StageSegmentation }

func (a *SegmenterAdapter) DependsOn() []string {
	return []string{domain.StageDetection}
}

type segmentRequest struct {
	Image  string          `json:"image"` // base64
	Model  string          `json:"model,omitempty"`
	Prompt json.RawMessage `json:"prompt_boxes,omitempty"` // detector bboxes
}

type segmentResponse struct {
	Masks []struct {
		ID         string    `json:"id"`
		Area       float64   `json:"area"`
		BBox       []float64 `json:"bbox"`
		Confidence float64   `json:"confidence"`
		Stability  float64   `json:"stability"`
	} `json:"masks"`
	PrimaryObject string `json:"primary_object"`
	Error         string `json:"error,omitempty"`
}

// Run segments the image, prompted by the detector's boxes when available.
func (a *SegmenterAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	req := segmentRequest{
		Image: base64.StdEncoding.EncodeToString(in.ImageData),
		Model: a.model,
	}
	if prior := in.Prior(domain.StageDetection); prior != nil && prior.Payload.Detection != nil {
		if b, err := json.Marshal(prior.Payload.Detection.Detections); err == nil {
			req.Prompt = b
		}
	}

	var resp segmentResponse
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(a.endpoint)
	if err != nil {
		return failed(domain.StageSegmentation, start, fmt.Errorf("failed to call segmentation API: %w", err))
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return failed(domain.StageSegmentation, start, fmt.Errorf("segmentation API returned HTTP %d", httpResp.StatusCode()))
	}
	if resp.Error != "" {
		return failed(domain.StageSegmentation, start, fmt.Errorf("segmentation API error: %s", resp.Error))
	}

	masks := make([]domain.SegmentMask, 0, len(resp.Masks))
	var bestStability, bestConfidence float64
	for _, m := range resp.Masks {
		masks = append(masks, domain.SegmentMask{
			ID:         m.ID,
			Area:       m.Area,
			BBox:       m.BBox,
			Confidence: clamp01(m.Confidence),
			Stability:  clamp01(m.Stability),
		})
		if m.Stability > bestStability {
			bestStability = m.Stability
		}
		if m.Confidence > bestConfidence {
			bestConfidence = m.Confidence
		}
	}

	hint, score := conditionFromStability(bestStability, len(masks))

	payload := domain.Payload{Segmentation: &domain.SegmentationPayload{
		Masks:          masks,
		PrimaryObject:  resp.PrimaryObject,
		ConditionHint:  hint,
		ConditionScore: score,
	}}

	return succeeded(domain.StageSegmentation, start, clamp01(bestConfidence), payload)
}

// conditionFromStability maps mask stability to a condition read. A crisp,
// stable primary mask correlates with an undamaged surface; many unstable
// fragments correlate with wear or occlusion.
func conditionFromStability(stability float64, maskCount int) (string, int) {
	switch {
	case maskCount == 0:
		return "good", 70
	case stability >= 0.95:
		return "excellent", 92
	case stability >= 0.85:
		return "very-good", 84
	case stability >= 0.7:
		return "good", 74
	default:
		return "fair", 60
	}
}
