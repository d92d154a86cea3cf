package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maribel/gemlens/internal/api/middleware"
	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/jobs"
	"github.com/maribel/gemlens/internal/pipeline"
	"github.com/maribel/gemlens/internal/producer"
	"github.com/maribel/gemlens/internal/service"
)

type okAdapter struct{ stage string }

func (a *okAdapter) Name() string        { return a.stage }
func (a *okAdapter) DependsOn() []string { return nil }

func (a *okAdapter) Run(_ context.Context, _ *producer.Input) *domain.ProducerResult {
	return &domain.ProducerResult{
		Stage:      a.stage,
		Confidence: 0.8,
		Succeeded:  true,
		Payload:    producer.FallbackPayload(a.stage),
	}
}

func testRouter() *httptest.Server {
	adapters := make([]producer.Adapter, 0, len(domain.StageOrder))
	for _, stage := range domain.StageOrder {
		adapters = append(adapters, &okAdapter{stage: stage})
	}

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Server.CORS.AllowAllOrigins = true
	cfg.Modes = config.ModesConfig{
		Standard: config.ModeLimits{MaxFiles: 10, MaxFileSizeMB: 10},
		Advanced: config.ModeLimits{MaxFiles: 25, MaxFileSizeMB: 15},
		Premium:  config.ModeLimits{MaxFiles: 50, MaxFileSizeMB: 25},
	}
	cfg.Fusion = config.FusionConfig{
		CategoryWeights: map[string]float64{domain.StageSynthesis: 0.30},
		ConfidenceFloor: 0.15,
	}
	cfg.Listing = config.ListingConfig{TitleMaxLen: 70, MaxTags: 10, FreeShippingPrice: 100}

	manager := jobs.NewManager(
		jobs.NewMemoryStore(),
		pipeline.NewSequencer(adapters, nil),
		pipeline.NewEngine(cfg.Fusion),
		pipeline.NewSynthesizer(cfg.Listing),
		nil,
	)
	orchestrator := service.NewOrchestrator(manager, nil, nil, cfg.Modes, nil)

	return httptest.NewServer(SetupRouter(orchestrator, cfg, nil))
}

func TestHealthEndpoint(t *testing.T) {
	srv := testRouter()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestModesEndpointIsPublic(t *testing.T) {
	srv := testRouter()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/modes")
	if err != nil {
		t.Fatalf("GET /api/v1/modes: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 without identity headers", resp.StatusCode)
	}

	var body struct {
		Modes []struct {
			Mode     string   `json:"mode"`
			Stages   []string `json:"stages"`
			MaxFiles int      `json:"max_files"`
		} `json:"modes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Modes) != 3 {
		t.Fatalf("modes = %d, want 3", len(body.Modes))
	}
	if body.Modes[2].Mode != "premium" || len(body.Modes[2].Stages) != len(domain.StageOrder) {
		t.Errorf("premium mode = %+v, want all stages", body.Modes[2])
	}
}

func TestIdentityRequired(t *testing.T) {
	srv := testRouter()
	defer srv.Close()

	for _, path := range []string{"/api/v1/jobs/abc", "/api/v1/analyses", "/api/v1/jobs"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401 without X-User-ID", path, resp.StatusCode)
		}
	}
}

func TestUploadAndPollFlow(t *testing.T) {
	srv := testRouter()
	defer srv.Close()
	client := srv.Client()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("mode", "standard")
	part, _ := w.CreateFormFile("files", "ring.jpg")
	_, _ = part.Write([]byte("not-a-real-jpeg"))
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(middleware.HeaderUserID, "user-1")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST /api/v1/uploads: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want 202", resp.StatusCode)
	}

	var accepted struct {
		JobID      string `json:"job_id"`
		Status     string `json:"status"`
		TotalFiles int    `json:"total_files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.JobID == "" || accepted.Status != "queued" || accepted.TotalFiles != 1 {
		t.Fatalf("accepted = %+v", accepted)
	}

	// Another user must not see the job; the owner polls it to completion.
	pollAs := func(userID string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/jobs/"+accepted.JobID, nil)
		req.Header.Set(middleware.HeaderUserID, userID)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET job: %v", err)
		}
		return resp
	}

	intruder := pollAs("user-2")
	intruder.Body.Close()
	if intruder.StatusCode != http.StatusForbidden {
		t.Errorf("foreign poll status = %d, want 403", intruder.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp := pollAs("user-1")
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			t.Fatalf("owner poll status = %d, want 200", resp.StatusCode)
		}
		var job domain.UploadJob
		err := json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status == domain.JobStatusCompleted {
			if len(job.Results) != 1 || job.Results[0].Analysis == nil {
				t.Fatalf("completed job results = %+v", job.Results)
			}
			break
		}
		if job.Status == domain.JobStatusFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatal("job never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownJobReturns404(t *testing.T) {
	srv := testRouter()
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/jobs/does-not-exist", nil)
	req.Header.Set(middleware.HeaderUserID, "user-1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadInvalidMode(t *testing.T) {
	srv := testRouter()
	defer srv.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("mode", "turbo")
	part, _ := w.CreateFormFile("files", "ring.jpg")
	_, _ = part.Write([]byte{1})
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(middleware.HeaderUserID, "user-1")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown mode", resp.StatusCode)
	}
}
