package domain

// MaterialEvidence is one fused material claim with its best supporting
// evidence across producers.
type MaterialEvidence struct {
	Material   string  `json:"material"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// GemstoneEvidence is one fused gemstone claim.
type GemstoneEvidence struct {
	Stone      string  `json:"stone"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// StyleInfo is the fused style read.
type StyleInfo struct {
	Era        string  `json:"era"`
	Design     string  `json:"design"`
	Aesthetic  string  `json:"aesthetic"`
	Confidence float64 `json:"confidence"`
}

// ConditionInfo is the fused condition assessment.
type ConditionInfo struct {
	Overall string   `json:"overall"` // excellent, very-good, good, fair
	Score   int      `json:"score"`   // 0-100
	Details []string `json:"details"`
}

// AuthenticityInfo is the fused authenticity assessment.
type AuthenticityInfo struct {
	Verified   bool     `json:"verified"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators"`
}

// BrandInfo is the fused brand detection.
type BrandInfo struct {
	Detected   bool     `json:"detected"`
	Name       string   `json:"name,omitempty"`
	Confidence float64  `json:"confidence"`
	Hallmarks  []string `json:"hallmarks"`
}

// PriceRange bounds the recommended price.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceInfo is the blended price recommendation.
type PriceInfo struct {
	Recommended float64    `json:"recommended"`
	Range       PriceRange `json:"range"`
	Confidence  float64    `json:"confidence"`
}

// PricePoint is one historical price observation.
type PricePoint struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

// MarketAnalysis summarizes comparable-item market data.
type MarketAnalysis struct {
	DemandLevel     string       `json:"demand_level"` // low, medium, high
	CompetitorCount int          `json:"competitor_count"`
	AveragePrice    float64      `json:"average_price"`
	PriceHistory    []PricePoint `json:"price_history"`
}

// QualityMetrics scores the analysis itself.
type QualityMetrics struct {
	OverallScore       int     `json:"overall_score"`       // 0-100
	ImageQuality       int     `json:"image_quality"`       // 0-100
	DescriptionQuality int     `json:"description_quality"` // 0-100
	MarketFit          int     `json:"market_fit"`          // 0-100
	AIConfidence       float64 `json:"ai_confidence"`       // 0-1
}

// IntegratedAnalysis is the fused record for one image. Every field is
// populated even when every producer failed: the fusion engine falls back to
// category-informed defaults rather than leaving holes.
type IntegratedAnalysis struct {
	Category    string             `json:"category"`
	Subcategory string             `json:"subcategory"`
	Materials   []MaterialEvidence `json:"materials"`
	Gemstones   []GemstoneEvidence `json:"gemstones"`
	Style       StyleInfo          `json:"style"`
	Condition   ConditionInfo      `json:"condition"`
	Authenticity AuthenticityInfo  `json:"authenticity"`
	Brand       BrandInfo          `json:"brand"`
	Price       PriceInfo          `json:"price"`
	Market      MarketAnalysis     `json:"market_analysis"`
	Quality     QualityMetrics     `json:"quality_metrics"`
}

// SEOBlock is the search-optimization portion of a listing.
type SEOBlock struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Tags        []string `json:"tags"`
	Score       int      `json:"score"` // 0-100
}

// ShippingEstimate is the category-derived shipping profile.
type ShippingEstimate struct {
	WeightGrams  int    `json:"weight_grams"`
	Dimensions   string `json:"dimensions"` // "LxWxH cm"
	FreeShipping bool   `json:"free_shipping"`
}

// Listing is the user-facing marketplace listing synthesized from an
// IntegratedAnalysis by deterministic templating.
type Listing struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	SEO              SEOBlock         `json:"seo"`
	CareInstructions []string         `json:"care_instructions"`
	Shipping         ShippingEstimate `json:"shipping"`
}
