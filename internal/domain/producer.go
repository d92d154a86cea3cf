package domain

// Stage names in fixed pipeline order. Every producer adapter reports one of
// these in its ProducerResult, and the fusion engine keys its per-stage vote
// weights by them.
const (
	StagePreprocessing = "preprocessing"
	StageDetection     = "object-detection"
	StageVision        = "vision-language"
	StageSegmentation  = "segmentation"
	StageSimilarity    = "similarity-search"
	StageVectorStore   = "vector-store"
	StageReasoning     = "reasoning"
	StageSynthesis     = "synthesis"
)

// StageOrder is the canonical execution order for a premium run. Mode subsets
// are always a sub-sequence of this list.
var StageOrder = []string{
	StagePreprocessing,
	StageDetection,
	StageVision,
	StageSegmentation,
	StageSimilarity,
	StageVectorStore,
	StageReasoning,
	StageSynthesis,
}

// ProducerResult is the normalized output of one producer invocation for one
// image. It is immutable after the adapter returns it. A failed adapter still
// returns a result: Succeeded=false, Confidence=0, and a fallback payload
// that satisfies the stage's minimal schema.
type ProducerResult struct {
	Stage        string  `json:"stage"`
	Confidence   float64 `json:"confidence"`
	Succeeded    bool    `json:"succeeded"`
	ProcessingMs int64   `json:"processing_ms"`
	Error        string  `json:"error,omitempty"`
	Payload      Payload `json:"payload"`
}

// Payload is a tagged union of per-stage payloads. Exactly one member is
// non-nil for a given ProducerResult: the one matching its Stage.
type Payload struct {
	Preprocess   *PreprocessPayload   `json:"preprocess,omitempty"`
	Detection    *DetectionPayload    `json:"detection,omitempty"`
	Vision       *VisionPayload       `json:"vision,omitempty"`
	Segmentation *SegmentationPayload `json:"segmentation,omitempty"`
	Similarity   *SimilarityPayload   `json:"similarity,omitempty"`
	VectorStore  *VectorStorePayload  `json:"vector_store,omitempty"`
	Reasoning    *ReasoningPayload    `json:"reasoning,omitempty"`
	Synthesis    *SynthesisPayload    `json:"synthesis,omitempty"`
}

// PreprocessPayload carries the local preprocessing outputs: decoded image
// metadata plus the storage locations of the original and web rendition.
type PreprocessPayload struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Format         string  `json:"format"`
	SizeBytes      int64   `json:"size_bytes"`
	MD5Hash        string  `json:"md5_hash"`
	OriginalURL    string  `json:"original_url"`
	OptimizedURL   string  `json:"optimized_url"`
	OptimizedSize  int64   `json:"optimized_size"`
	SavingsPercent float64 `json:"savings_percent"`
}

// Detection is one detected object with its bounding box.
type Detection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // x, y, w, h in pixels
}

// DetectionPayload is the object-detection stage output.
type DetectionPayload struct {
	Detections   []Detection `json:"detections"`
	ModelVersion string      `json:"model_version"`
	Category     string      `json:"category"` // class of the strongest detection
}

// ConceptScore is a visual concept with its confidence.
type ConceptScore struct {
	Concept    string  `json:"concept"`
	Confidence float64 `json:"confidence"`
}

// VisionPayload is the vision-language stage output: concept scores for
// materials/gemstones plus a style read and a free-text description.
type VisionPayload struct {
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Materials   []ConceptScore `json:"materials"`
	Gemstones   []ConceptScore `json:"gemstones"`
	Concepts    []ConceptScore `json:"concepts"`
	Era         string         `json:"era"`
	Design      string         `json:"design"`
	Aesthetic   string         `json:"aesthetic"`
	StyleScore  float64        `json:"style_score"`
}

// SegmentMask is one segmentation mask summary.
type SegmentMask struct {
	ID         string    `json:"id"`
	Area       float64   `json:"area"`
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Stability  float64   `json:"stability"`
}

// SegmentationPayload is the segmentation stage output.
type SegmentationPayload struct {
	Masks         []SegmentMask `json:"masks"`
	PrimaryObject string        `json:"primary_object"`
	ConditionHint string        `json:"condition_hint"` // surface read: excellent/good/fair
	ConditionScore int          `json:"condition_score"`
}

// SimilarItem is one nearest neighbor from the similarity search.
type SimilarItem struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	Price      float64 `json:"price"`
	Source     string  `json:"source"`
}

// SimilarityPayload is the similarity-search stage output. AveragePrice is
// zero when no priced neighbor was found.
type SimilarityPayload struct {
	Embedding    []float32     `json:"-"`
	SimilarItems []SimilarItem `json:"similar_items"`
	AveragePrice float64       `json:"average_price"`
	PriceMin     float64       `json:"price_min"`
	PriceMax     float64       `json:"price_max"`
}

// VectorStorePayload is the vector-store stage output: the upserted point ID
// plus the store's nearest-neighbor classification.
type VectorStorePayload struct {
	VectorID    string  `json:"vector_id"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
	Neighbors   int     `json:"neighbors"`
}

// ReasoningStep is one step of the reasoning chain.
type ReasoningStep struct {
	Step       string  `json:"step"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// ReasoningPayload is the reasoning stage output.
type ReasoningPayload struct {
	Steps         []ReasoningStep `json:"steps"`
	Conclusion    string          `json:"conclusion"`
	PriceEstimate float64         `json:"price_estimate"` // 0 when the chain produced none
	Authentic     bool            `json:"authentic"`
	Indicators    []string        `json:"indicators"`
}

// AgentOutput is one role's contribution in the multi-agent synthesis.
type AgentOutput struct {
	Role       string  `json:"role"`
	Output     string  `json:"output"`
	Confidence float64 `json:"confidence"`
}

// SynthesisPayload is the multi-agent synthesis consensus.
type SynthesisPayload struct {
	Agents        []AgentOutput `json:"agents"`
	Category      string        `json:"category"`
	Subcategory   string        `json:"subcategory"`
	Price         float64       `json:"price"`
	Description   string        `json:"description"`
	BrandDetected bool          `json:"brand_detected"`
	BrandName     string        `json:"brand_name"`
	Hallmarks     []string      `json:"hallmarks"`
	DemandLevel   string        `json:"demand_level"`
}
