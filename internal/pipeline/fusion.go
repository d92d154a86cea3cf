package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
)

// categoryTieBreak orders the voting stages for deterministic tie resolution:
// when two categories draw the same weighted score, the one backed by the
// earlier stage in this list wins.
var categoryTieBreak = []string{
	domain.StageSynthesis,
	domain.StageDetection,
	domain.StageVectorStore,
	domain.StageVision,
}

// defaultPrices are the category fallbacks used when no producer supplied a
// price estimate.
var defaultPrices = map[string]float64{
	"ring":     150,
	"necklace": 120,
	"pendant":  110,
	"bracelet": 100,
	"earrings": 80,
	"brooch":   90,
	"watch":    250,
	"jewelry":  100,
}

// defaultMaterials back-fill the material list when vision produced nothing.
var defaultMaterials = map[string]string{
	"ring":     "gold",
	"necklace": "silver",
	"pendant":  "silver",
	"bracelet": "silver",
	"earrings": "silver",
	"brooch":   "silver",
	"watch":    "stainless steel",
	"jewelry":  "mixed metal",
}

var marketFitByDemand = map[string]int{
	"low":    40,
	"medium": 65,
	"high":   85,
}

// Engine merges the per-stage producer results for one image into a single
// IntegratedAnalysis. Fusion is pure and deterministic: the same result set
// always yields the same analysis, and every field is populated even when
// every producer failed.
type Engine struct {
	cfg config.FusionConfig
}

// NewEngine creates a fusion engine with the given tuning.
func NewEngine(cfg config.FusionConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Fuse merges the stage results into one analysis. Results from stages the
// mode never ran are simply absent from the slice; failed stages contribute
// their fallback payloads at zero confidence and so never outvote a
// succeeded stage.
func (e *Engine) Fuse(results []*domain.ProducerResult) *domain.IntegratedAnalysis {
	byStage := make(map[string]*domain.ProducerResult, len(results))
	for _, r := range results {
		if r != nil {
			byStage[r.Stage] = r
		}
	}

	category := e.voteCategory(byStage)

	out := &domain.IntegratedAnalysis{
		Category:     category,
		Subcategory:  fuseSubcategory(byStage),
		Materials:    e.fuseMaterials(byStage, category),
		Gemstones:    e.fuseGemstones(byStage),
		Style:        fuseStyle(byStage),
		Condition:    fuseCondition(byStage),
		Authenticity: fuseAuthenticity(byStage),
		Brand:        fuseBrand(byStage),
	}
	out.Price = e.fusePrice(byStage, category)
	out.Market = fuseMarket(byStage, out.Price.Recommended)
	out.Quality = fuseQuality(byStage, out, results)
	return out
}

// voteCategory runs the confidence-weighted vote over the four category
// producers. Each stage contributes weight(stage) * confidence for its
// claimed category; ties resolve by categoryTieBreak order.
func (e *Engine) voteCategory(byStage map[string]*domain.ProducerResult) string {
	type candidate struct {
		score     float64
		bestStage int // lowest tie-break index backing this category
	}
	votes := make(map[string]*candidate)

	cast := func(stage, category string, confidence float64) {
		category = normalizeTerm(category)
		if category == "" {
			return
		}
		w := e.cfg.CategoryWeights[stage] * confidence
		if w <= 0 {
			return
		}
		c, ok := votes[category]
		if !ok {
			c = &candidate{bestStage: len(categoryTieBreak)}
			votes[category] = c
		}
		c.score += w
		for i, s := range categoryTieBreak {
			if s == stage && i < c.bestStage {
				c.bestStage = i
			}
		}
	}

	if r, ok := byStage[domain.StageDetection]; ok && r.Payload.Detection != nil {
		cast(domain.StageDetection, r.Payload.Detection.Category, r.Confidence)
	}
	if r, ok := byStage[domain.StageVision]; ok && r.Payload.Vision != nil {
		cast(domain.StageVision, r.Payload.Vision.Category, r.Confidence)
	}
	if r, ok := byStage[domain.StageVectorStore]; ok && r.Payload.VectorStore != nil {
		cast(domain.StageVectorStore, r.Payload.VectorStore.Category, r.Confidence)
	}
	if r, ok := byStage[domain.StageSynthesis]; ok && r.Payload.Synthesis != nil {
		cast(domain.StageSynthesis, r.Payload.Synthesis.Category, r.Confidence)
	}

	winner, best := "", (*candidate)(nil)
	for category, c := range votes {
		if best == nil ||
			c.score > best.score ||
			(c.score == best.score && c.bestStage < best.bestStage) ||
			(c.score == best.score && c.bestStage == best.bestStage && category < winner) {
			winner, best = category, c
		}
	}
	if winner == "" {
		return "jewelry"
	}
	return winner
}

func fuseSubcategory(byStage map[string]*domain.ProducerResult) string {
	if r, ok := byStage[domain.StageSynthesis]; ok && r.Succeeded && r.Payload.Synthesis != nil {
		if s := normalizeTerm(r.Payload.Synthesis.Subcategory); s != "" {
			return s
		}
	}
	if r, ok := byStage[domain.StageVectorStore]; ok && r.Succeeded && r.Payload.VectorStore != nil {
		if s := normalizeTerm(r.Payload.VectorStore.Subcategory); s != "" {
			return s
		}
	}
	return "general"
}

// fuseMaterials unions the vision material scores, dedupes on the normalized
// term keeping the highest confidence, drops entries below the confidence
// floor, and back-fills a category default when nothing survives.
func (e *Engine) fuseMaterials(byStage map[string]*domain.ProducerResult, category string) []domain.MaterialEvidence {
	merged := unionConcepts(visionConcepts(byStage, func(p *domain.VisionPayload) []domain.ConceptScore {
		return p.Materials
	}), e.cfg.ConfidenceFloor)

	out := make([]domain.MaterialEvidence, 0, len(merged))
	for _, c := range merged {
		out = append(out, domain.MaterialEvidence{
			Material:   c.Concept,
			Confidence: c.Confidence,
			Evidence:   "vision-language analysis",
		})
	}
	if len(out) == 0 {
		material := defaultMaterials[category]
		if material == "" {
			material = defaultMaterials["jewelry"]
		}
		out = append(out, domain.MaterialEvidence{
			Material:   material,
			Confidence: 0.3,
			Evidence:   "category default",
		})
	}
	return out
}

func (e *Engine) fuseGemstones(byStage map[string]*domain.ProducerResult) []domain.GemstoneEvidence {
	merged := unionConcepts(visionConcepts(byStage, func(p *domain.VisionPayload) []domain.ConceptScore {
		return p.Gemstones
	}), e.cfg.ConfidenceFloor)

	out := make([]domain.GemstoneEvidence, 0, len(merged))
	for _, c := range merged {
		out = append(out, domain.GemstoneEvidence{
			Stone:      c.Concept,
			Confidence: c.Confidence,
			Evidence:   "vision-language analysis",
		})
	}
	// An empty gemstone list is a valid read: plain metal pieces have none.
	if out == nil {
		out = []domain.GemstoneEvidence{}
	}
	return out
}

func visionConcepts(byStage map[string]*domain.ProducerResult, pick func(*domain.VisionPayload) []domain.ConceptScore) []domain.ConceptScore {
	r, ok := byStage[domain.StageVision]
	if !ok || r.Payload.Vision == nil {
		return nil
	}
	return pick(r.Payload.Vision)
}

// unionConcepts dedupes concept scores on the lowercased, trimmed term,
// keeping the highest confidence per term, dropping entries below the floor,
// and sorting by confidence descending then term for determinism.
func unionConcepts(concepts []domain.ConceptScore, floor float64) []domain.ConceptScore {
	best := make(map[string]float64)
	for _, c := range concepts {
		term := normalizeTerm(c.Concept)
		if term == "" || c.Confidence < floor {
			continue
		}
		if c.Confidence > best[term] {
			best[term] = c.Confidence
		}
	}
	out := make([]domain.ConceptScore, 0, len(best))
	for term, conf := range best {
		out = append(out, domain.ConceptScore{Concept: term, Confidence: conf})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Concept < out[j].Concept
	})
	return out
}

func fuseStyle(byStage map[string]*domain.ProducerResult) domain.StyleInfo {
	style := domain.StyleInfo{
		Era:        "contemporary",
		Design:     "classic",
		Aesthetic:  "elegant",
		Confidence: 0.3,
	}
	r, ok := byStage[domain.StageVision]
	if !ok || !r.Succeeded || r.Payload.Vision == nil {
		return style
	}
	v := r.Payload.Vision
	if s := normalizeTerm(v.Era); s != "" {
		style.Era = s
	}
	if s := normalizeTerm(v.Design); s != "" {
		style.Design = s
	}
	if s := normalizeTerm(v.Aesthetic); s != "" {
		style.Aesthetic = s
	}
	if v.StyleScore > 0 {
		style.Confidence = clampUnit(v.StyleScore)
	}
	return style
}

func fuseCondition(byStage map[string]*domain.ProducerResult) domain.ConditionInfo {
	cond := domain.ConditionInfo{Overall: "good", Score: 75, Details: []string{}}
	r, ok := byStage[domain.StageSegmentation]
	if !ok || !r.Succeeded || r.Payload.Segmentation == nil {
		return cond
	}
	s := r.Payload.Segmentation
	if s.ConditionHint != "" {
		cond.Overall = s.ConditionHint
	}
	if s.ConditionScore > 0 {
		cond.Score = clampScore(s.ConditionScore)
	}
	if s.PrimaryObject != "" {
		cond.Details = append(cond.Details, "primary object: "+s.PrimaryObject)
	}
	if len(s.Masks) > 0 {
		cond.Details = append(cond.Details, "surface segments analyzed")
	}
	return cond
}

func fuseAuthenticity(byStage map[string]*domain.ProducerResult) domain.AuthenticityInfo {
	auth := domain.AuthenticityInfo{Verified: false, Confidence: 0.3, Indicators: []string{}}
	r, ok := byStage[domain.StageReasoning]
	if !ok || !r.Succeeded || r.Payload.Reasoning == nil {
		return auth
	}
	p := r.Payload.Reasoning
	auth.Verified = p.Authentic
	auth.Confidence = clampUnit(r.Confidence)
	if len(p.Indicators) > 0 {
		auth.Indicators = append([]string(nil), p.Indicators...)
	}
	return auth
}

func fuseBrand(byStage map[string]*domain.ProducerResult) domain.BrandInfo {
	brand := domain.BrandInfo{Detected: false, Confidence: 0, Hallmarks: []string{}}
	r, ok := byStage[domain.StageSynthesis]
	if !ok || !r.Succeeded || r.Payload.Synthesis == nil {
		return brand
	}
	p := r.Payload.Synthesis
	brand.Detected = p.BrandDetected
	if p.BrandDetected {
		brand.Name = p.BrandName
		brand.Confidence = clampUnit(r.Confidence)
	}
	if len(p.Hallmarks) > 0 {
		brand.Hallmarks = append([]string(nil), p.Hallmarks...)
	}
	return brand
}

// fusePrice blends the available estimates with equal weight: similarity
// market average, synthesis consensus, and the reasoning chain. With no
// estimate at all the category default applies. The range is the similarity
// stage's observed min/max when it priced at least one neighbor, otherwise a
// fixed spread around the recommendation; the recommendation always lies
// inside the range.
func (e *Engine) fusePrice(byStage map[string]*domain.ProducerResult, category string) domain.PriceInfo {
	var estimates []float64
	var confidences []float64

	var sim *domain.SimilarityPayload
	if r, ok := byStage[domain.StageSimilarity]; ok && r.Succeeded && r.Payload.Similarity != nil {
		sim = r.Payload.Similarity
		if sim.AveragePrice > 0 {
			estimates = append(estimates, sim.AveragePrice)
			confidences = append(confidences, r.Confidence)
		}
	}
	if r, ok := byStage[domain.StageSynthesis]; ok && r.Succeeded && r.Payload.Synthesis != nil && r.Payload.Synthesis.Price > 0 {
		estimates = append(estimates, r.Payload.Synthesis.Price)
		confidences = append(confidences, r.Confidence)
	}
	if r, ok := byStage[domain.StageReasoning]; ok && r.Succeeded && r.Payload.Reasoning != nil && r.Payload.Reasoning.PriceEstimate > 0 {
		estimates = append(estimates, r.Payload.Reasoning.PriceEstimate)
		confidences = append(confidences, r.Confidence)
	}

	price := domain.PriceInfo{Confidence: 0.2}
	if len(estimates) > 0 {
		price.Recommended = round2(mean(estimates))
		price.Confidence = clampUnit(mean(confidences))
	} else {
		def, ok := defaultPrices[category]
		if !ok {
			def = defaultPrices["jewelry"]
		}
		price.Recommended = def
	}

	low, high := e.cfg.PriceSpreadLow, e.cfg.PriceSpreadHigh
	if low <= 0 || low > 1 {
		low = 0.8
	}
	if high < 1 {
		high = 1.3
	}
	price.Range = domain.PriceRange{
		Min: round2(price.Recommended * low),
		Max: round2(price.Recommended * high),
	}
	if sim != nil && sim.PriceMin > 0 && sim.PriceMax >= sim.PriceMin {
		price.Range.Min = math.Min(sim.PriceMin, price.Recommended)
		price.Range.Max = math.Max(sim.PriceMax, price.Recommended)
	}
	return price
}

func fuseMarket(byStage map[string]*domain.ProducerResult, recommended float64) domain.MarketAnalysis {
	market := domain.MarketAnalysis{
		DemandLevel:  "medium",
		AveragePrice: recommended,
		PriceHistory: []domain.PricePoint{},
	}
	if r, ok := byStage[domain.StageSynthesis]; ok && r.Succeeded && r.Payload.Synthesis != nil {
		if d := r.Payload.Synthesis.DemandLevel; d == "low" || d == "medium" || d == "high" {
			market.DemandLevel = d
		}
	}
	if r, ok := byStage[domain.StageSimilarity]; ok && r.Succeeded && r.Payload.Similarity != nil {
		sim := r.Payload.Similarity
		market.CompetitorCount = len(sim.SimilarItems)
		if sim.AveragePrice > 0 {
			market.AveragePrice = sim.AveragePrice
		}
	}
	return market
}

// fuseQuality scores the analysis itself. The overall score blends the mean
// confidence of the voting fields with the stage completion rate, 60/40.
func fuseQuality(byStage map[string]*domain.ProducerResult, analysis *domain.IntegratedAnalysis, results []*domain.ProducerResult) domain.QualityMetrics {
	fieldConfs := []float64{
		analysis.Style.Confidence,
		analysis.Authenticity.Confidence,
		analysis.Price.Confidence,
		float64(analysis.Condition.Score) / 100,
	}
	if len(analysis.Materials) > 0 {
		fieldConfs = append(fieldConfs, analysis.Materials[0].Confidence)
	}

	completed := 0
	for _, r := range results {
		if r != nil && r.Succeeded {
			completed++
		}
	}
	completionRate := 0.0
	if len(results) > 0 {
		completionRate = float64(completed) / float64(len(results))
	}

	q := domain.QualityMetrics{
		OverallScore: clampScore(int(math.Round(100 * (0.6*mean(fieldConfs) + 0.4*completionRate)))),
		ImageQuality: 50,
		MarketFit:    marketFitByDemand[analysis.Market.DemandLevel],
	}

	if r, ok := byStage[domain.StagePreprocessing]; ok && r.Succeeded && r.Payload.Preprocess != nil {
		p := r.Payload.Preprocess
		switch shorter := min(p.Width, p.Height); {
		case shorter >= 1200:
			q.ImageQuality = 95
		case shorter >= 800:
			q.ImageQuality = 85
		case shorter >= 500:
			q.ImageQuality = 70
		case shorter >= 300:
			q.ImageQuality = 55
		default:
			q.ImageQuality = 35
		}
	}

	if r, ok := byStage[domain.StageSynthesis]; ok && r.Payload.Synthesis != nil {
		q.AIConfidence = clampUnit(r.Confidence)
		switch n := len(r.Payload.Synthesis.Description); {
		case n >= 200:
			q.DescriptionQuality = 90
		case n >= 100:
			q.DescriptionQuality = 75
		case n > 0:
			q.DescriptionQuality = 55
		default:
			q.DescriptionQuality = 30
		}
	} else {
		q.DescriptionQuality = 30
	}
	return q
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
