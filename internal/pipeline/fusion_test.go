package pipeline

import (
	"math"
	"testing"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
)

func testFusionConfig() config.FusionConfig {
	return config.FusionConfig{
		CategoryWeights: map[string]float64{
			domain.StageDetection:   0.30,
			domain.StageVision:      0.20,
			domain.StageVectorStore: 0.20,
			domain.StageSynthesis:   0.30,
		},
		ConfidenceFloor: 0.15,
		PriceSpreadLow:  0.8,
		PriceSpreadHigh: 1.3,
	}
}

func detectionResult(category string, confidence float64) *domain.ProducerResult {
	return &domain.ProducerResult{
		Stage:      domain.StageDetection,
		Confidence: confidence,
		Succeeded:  true,
		Payload: domain.Payload{Detection: &domain.DetectionPayload{
			Category: category,
			Detections: []domain.Detection{
				{Class: category, Confidence: confidence, BBox: []float64{0, 0, 100, 100}},
			},
		}},
	}
}

func visionResult(category string, confidence float64) *domain.ProducerResult {
	return &domain.ProducerResult{
		Stage:      domain.StageVision,
		Confidence: confidence,
		Succeeded:  true,
		Payload: domain.Payload{Vision: &domain.VisionPayload{
			Description: "A delicate gold band with a single round stone.",
			Category:    category,
			Materials: []domain.ConceptScore{
				{Concept: "Gold", Confidence: 0.9},
				{Concept: " gold ", Confidence: 0.7},
				{Concept: "copper", Confidence: 0.1},
			},
			Gemstones:  []domain.ConceptScore{{Concept: "Diamond", Confidence: 0.8}},
			Era:        "Art Deco",
			Design:     "solitaire",
			Aesthetic:  "refined",
			StyleScore: 0.75,
		}},
	}
}

func synthesisResult(category string, confidence, price float64) *domain.ProducerResult {
	return &domain.ProducerResult{
		Stage:      domain.StageSynthesis,
		Confidence: confidence,
		Succeeded:  true,
		Payload: domain.Payload{Synthesis: &domain.SynthesisPayload{
			Category:    category,
			Subcategory: "solitaire ring",
			Price:       price,
			Description: "Elegant gold solitaire ring with a brilliant-cut diamond, suited to both daily wear and formal occasions. The band shows fine craftsmanship.",
			DemandLevel: "high",
		}},
	}
}

func failedResult(stage string) *domain.ProducerResult {
	return &domain.ProducerResult{
		Stage:   stage,
		Error:   "upstream timeout",
		Payload: payloadFor(stage),
	}
}

func payloadFor(stage string) domain.Payload {
	switch stage {
	case domain.StageDetection:
		return domain.Payload{Detection: &domain.DetectionPayload{Category: "jewelry"}}
	case domain.StageVision:
		return domain.Payload{Vision: &domain.VisionPayload{Category: "jewelry"}}
	case domain.StageSynthesis:
		return domain.Payload{Synthesis: &domain.SynthesisPayload{Category: "jewelry", DemandLevel: "medium"}}
	default:
		return domain.Payload{}
	}
}

func TestVoteCategory(t *testing.T) {
	engine := NewEngine(testFusionConfig())

	tests := []struct {
		name    string
		results []*domain.ProducerResult
		want    string
	}{
		{
			name: "highest weighted vote wins",
			results: []*domain.ProducerResult{
				detectionResult("ring", 0.9),   // 0.30 * 0.9 = 0.27
				visionResult("necklace", 0.9),  // 0.20 * 0.9 = 0.18
				synthesisResult("ring", 0.8, 0), // + 0.24 -> ring 0.51
			},
			want: "ring",
		},
		{
			name: "synthesis outvotes a weaker detection",
			results: []*domain.ProducerResult{
				detectionResult("bracelet", 0.5),   // 0.15
				synthesisResult("necklace", 0.9, 0), // 0.27
			},
			want: "necklace",
		},
		{
			name: "tie resolves by stage priority",
			results: []*domain.ProducerResult{
				// detection 0.30*0.6=0.18 vs vision+vector none; synthesis 0.30*0.6=0.18
				detectionResult("brooch", 0.6),
				synthesisResult("pendant", 0.6, 0),
			},
			want: "pendant",
		},
		{
			name: "failed producers cannot vote",
			results: []*domain.ProducerResult{
				failedResult(domain.StageDetection),
				failedResult(domain.StageSynthesis),
			},
			want: "jewelry",
		},
		{
			name:    "no results at all",
			results: nil,
			want:    "jewelry",
		},
		{
			name: "categories are normalized before voting",
			results: []*domain.ProducerResult{
				detectionResult("  Ring ", 0.5),
				visionResult("ring", 0.5),
			},
			want: "ring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Fuse(tt.results)
			if got.Category != tt.want {
				t.Errorf("category = %q, want %q", got.Category, tt.want)
			}
		})
	}
}

func TestFuseMaterials(t *testing.T) {
	engine := NewEngine(testFusionConfig())

	t.Run("dedupe keeps highest confidence and drops below floor", func(t *testing.T) {
		got := engine.Fuse([]*domain.ProducerResult{visionResult("ring", 0.8)})
		if len(got.Materials) != 1 {
			t.Fatalf("materials = %v, want exactly one fused entry", got.Materials)
		}
		m := got.Materials[0]
		if m.Material != "gold" || m.Confidence != 0.9 {
			t.Errorf("material = %+v, want gold at 0.9", m)
		}
	})

	t.Run("category default when vision is absent", func(t *testing.T) {
		got := engine.Fuse([]*domain.ProducerResult{detectionResult("ring", 0.9)})
		if len(got.Materials) != 1 {
			t.Fatalf("materials = %v, want one default entry", got.Materials)
		}
		if got.Materials[0].Evidence != "category default" {
			t.Errorf("evidence = %q, want category default", got.Materials[0].Evidence)
		}
	})

	t.Run("gemstones may be empty but never nil", func(t *testing.T) {
		got := engine.Fuse(nil)
		if got.Gemstones == nil {
			t.Error("gemstones is nil, want empty slice")
		}
	})
}

func TestFusePrice(t *testing.T) {
	engine := NewEngine(testFusionConfig())

	simResult := &domain.ProducerResult{
		Stage:      domain.StageSimilarity,
		Confidence: 0.7,
		Succeeded:  true,
		Payload: domain.Payload{Similarity: &domain.SimilarityPayload{
			SimilarItems: []domain.SimilarItem{
				{ID: "a", Similarity: 0.9, Price: 100},
				{ID: "b", Similarity: 0.8, Price: 140},
			},
			AveragePrice: 120,
			PriceMin:     100,
			PriceMax:     140,
		}},
	}

	t.Run("mean of available estimates", func(t *testing.T) {
		got := engine.Fuse([]*domain.ProducerResult{
			simResult,
			synthesisResult("ring", 0.8, 180),
		})
		if want := 150.0; got.Price.Recommended != want {
			t.Errorf("recommended = %v, want %v", got.Price.Recommended, want)
		}
	})

	t.Run("explicit similarity range preferred and widened to include recommendation", func(t *testing.T) {
		got := engine.Fuse([]*domain.ProducerResult{
			simResult,
			synthesisResult("ring", 0.8, 180),
		})
		if got.Price.Range.Min != 100 {
			t.Errorf("range min = %v, want 100", got.Price.Range.Min)
		}
		if got.Price.Range.Max != 150 {
			t.Errorf("range max = %v, want 150 (widened to cover recommendation)", got.Price.Range.Max)
		}
	})

	t.Run("category default when nothing priced", func(t *testing.T) {
		got := engine.Fuse([]*domain.ProducerResult{detectionResult("ring", 0.9)})
		if got.Price.Recommended != 150 {
			t.Errorf("recommended = %v, want the ring default 150", got.Price.Recommended)
		}
		if got.Price.Range.Min != 120 || got.Price.Range.Max != 195 {
			t.Errorf("range = %+v, want [120, 195]", got.Price.Range)
		}
	})

	t.Run("recommendation always inside the range", func(t *testing.T) {
		cases := [][]*domain.ProducerResult{
			nil,
			{simResult},
			{synthesisResult("watch", 0.9, 999)},
			{simResult, synthesisResult("ring", 0.8, 500)},
		}
		for _, results := range cases {
			got := engine.Fuse(results)
			p := got.Price
			if p.Recommended < p.Range.Min || p.Recommended > p.Range.Max {
				t.Errorf("recommended %v outside range [%v, %v]", p.Recommended, p.Range.Min, p.Range.Max)
			}
		}
	})
}

func TestFuseQuality(t *testing.T) {
	engine := NewEngine(testFusionConfig())

	t.Run("ai confidence follows synthesis", func(t *testing.T) {
		got := engine.Fuse([]*domain.ProducerResult{synthesisResult("ring", 0.83, 100)})
		if got.Quality.AIConfidence != 0.83 {
			t.Errorf("ai confidence = %v, want 0.83", got.Quality.AIConfidence)
		}
	})

	t.Run("overall score blends field confidence and completion", func(t *testing.T) {
		all := engine.Fuse([]*domain.ProducerResult{
			detectionResult("ring", 0.9),
			visionResult("ring", 0.8),
			synthesisResult("ring", 0.8, 150),
		})
		degraded := engine.Fuse([]*domain.ProducerResult{
			detectionResult("ring", 0.9),
			failedResult(domain.StageVision),
			failedResult(domain.StageSynthesis),
		})
		if all.Quality.OverallScore <= degraded.Quality.OverallScore {
			t.Errorf("full run scored %d, degraded %d; want full > degraded",
				all.Quality.OverallScore, degraded.Quality.OverallScore)
		}
	})

	t.Run("scores stay in bounds", func(t *testing.T) {
		for _, results := range [][]*domain.ProducerResult{nil, {synthesisResult("ring", 1.5, 10)}} {
			q := engine.Fuse(results).Quality
			for name, v := range map[string]int{
				"overall": q.OverallScore, "image": q.ImageQuality,
				"description": q.DescriptionQuality, "market": q.MarketFit,
			} {
				if v < 0 || v > 100 {
					t.Errorf("%s score = %d, want within [0, 100]", name, v)
				}
			}
			if q.AIConfidence < 0 || q.AIConfidence > 1 {
				t.Errorf("ai confidence = %v, want within [0, 1]", q.AIConfidence)
			}
		}
	})
}

func TestFuseIsDeterministic(t *testing.T) {
	engine := NewEngine(testFusionConfig())
	results := []*domain.ProducerResult{
		detectionResult("ring", 0.9),
		visionResult("ring", 0.8),
		synthesisResult("ring", 0.8, 150),
	}
	first := engine.Fuse(results)
	for i := 0; i < 20; i++ {
		again := engine.Fuse(results)
		if again.Category != first.Category || again.Price.Recommended != first.Price.Recommended {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
		if len(again.Materials) != len(first.Materials) {
			t.Fatalf("run %d material count diverged", i)
		}
	}
}

func TestEveryFieldPopulatedOnTotalFailure(t *testing.T) {
	engine := NewEngine(testFusionConfig())
	got := engine.Fuse([]*domain.ProducerResult{
		failedResult(domain.StageDetection),
		failedResult(domain.StageVision),
		failedResult(domain.StageSynthesis),
	})

	if got.Category == "" || got.Subcategory == "" {
		t.Errorf("category/subcategory empty: %q/%q", got.Category, got.Subcategory)
	}
	if len(got.Materials) == 0 {
		t.Error("materials empty, want a category default")
	}
	if got.Style.Era == "" || got.Condition.Overall == "" {
		t.Errorf("style/condition defaults missing: %+v %+v", got.Style, got.Condition)
	}
	if got.Price.Recommended <= 0 {
		t.Errorf("price = %v, want positive default", got.Price.Recommended)
	}
	if got.Market.DemandLevel == "" || got.Market.PriceHistory == nil {
		t.Errorf("market not populated: %+v", got.Market)
	}
	if got.Authenticity.Indicators == nil || got.Brand.Hallmarks == nil {
		t.Error("authenticity indicators or brand hallmarks nil, want empty slices")
	}
	if math.IsNaN(got.Quality.AIConfidence) {
		t.Error("ai confidence is NaN")
	}
}
