package producer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maribel/gemlens/internal/domain"
)

// DetectorAdapter wraps the object-detection service. The remote contract is
// a single POST with the image and a detection list back.
type DetectorAdapter struct {
	client   *resty.Client
	endpoint string
	model    string
}

// DetectorConfig holds configuration for the detection service.
type DetectorConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewDetectorAdapter creates the object-detection adapter.
func NewDetectorAdapter(cfg *DetectorConfig) *DetectorAdapter {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}

	return &DetectorAdapter{
		client:   client,
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/") + "/detect",
		model:    cfg.Model,
	}
}

func (a *DetectorAdapter) Name() string { return domain.StageDetection }

func (a *DetectorAdapter) DependsOn() []string {
	return []string{domain.StagePreprocessing}
}

type detectRequest struct {
	Image string `json:"image"` // base64
	Model string `json:"model,omitempty"`
}

type detectResponse struct {
	Detections []struct {
		Class      string    `json:"class"`
		Confidence float64   `json:"confidence"`
		BBox       []float64 `json:"bbox"`
	} `json:"detections"`
	ModelVersion string `json:"model_version"`
	Error        string `json:"error,omitempty"`
}

// Run submits the image for detection.
func (a *DetectorAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	req := detectRequest{
		Image: base64.StdEncoding.EncodeToString(in.ImageData),
		Model: a.model,
	}

	var resp detectResponse
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(a.endpoint)
	if err != nil {
		return failed(domain.StageDetection, start, fmt.Errorf("failed to call detection API: %w", err))
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return failed(domain.StageDetection, start, fmt.Errorf("detection API returned HTTP %d", httpResp.StatusCode()))
	}
	if resp.Error != "" {
		return failed(domain.StageDetection, start, fmt.Errorf("detection API error: %s", resp.Error))
	}

	detections := make([]domain.Detection, 0, len(resp.Detections))
	best := domain.Detection{Class: "jewelry"}
	for _, d := range resp.Detections {
		det := domain.Detection{Class: d.Class, Confidence: clamp01(d.Confidence), BBox: d.BBox}
		detections = append(detections, det)
		if det.Confidence > best.Confidence {
			best = det
		}
	}

	payload := domain.Payload{Detection: &domain.DetectionPayload{
		Detections:   detections,
		ModelVersion: resp.ModelVersion,
		Category:     best.Class,
	}}

	return succeeded(domain.StageDetection, start, best.Confidence, payload)
}
