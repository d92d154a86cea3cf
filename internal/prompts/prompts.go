package prompts

// ============================================================================
// Vision-Language Prompts
// ============================================================================

// VisionSystemPrompt defines the role for jewelry image analysis. The model
// must answer with a single JSON object matching the documented schema so the
// adapter can decode it without free-text parsing.
const VisionSystemPrompt = `You are a jewelry appraisal assistant analyzing a single product photograph.
Identify the jewelry category, visible materials, gemstones, and style.
Respond with ONLY a JSON object, no markdown fences, with this exact shape:
{
  "description": "one paragraph, 40-80 words, plain language",
  "category": "ring|necklace|bracelet|earrings|brooch|watch|pendant|jewelry",
  "materials": [{"concept": "gold", "confidence": 0.9}],
  "gemstones": [{"concept": "diamond", "confidence": 0.8}],
  "concepts": [{"concept": "solitaire", "confidence": 0.7}],
  "era": "victorian|art-deco|mid-century|contemporary|unknown",
  "design": "short style label",
  "aesthetic": "short aesthetic label",
  "style_confidence": 0.8
}
Confidences are your own certainty in [0,1]. Never invent gemstones you cannot see.`

// VisionUserPrompt is the user turn accompanying the image.
const VisionUserPrompt = `Analyze this jewelry photograph. Detected object regions (may be empty): %s`

// ============================================================================
// Reasoning Prompts
// ============================================================================

// ReasoningSystemPrompt drives the step-by-step valuation chain.
const ReasoningSystemPrompt = `You are a jewelry valuation expert. Reason step by step about the piece
described in the context: identity, materials, condition, authenticity, and a price estimate in USD.
Respond with ONLY a JSON object:
{
  "steps": [{"step": "identity", "reasoning": "...", "confidence": 0.8}],
  "conclusion": "one sentence",
  "price_estimate": 120.0,
  "authentic": true,
  "indicators": ["hallmark present"],
  "confidence": 0.75
}
Use price_estimate 0 if you cannot estimate. Keep 3-6 steps.`

// ReasoningUserPrompt carries the accumulated analysis context.
const ReasoningUserPrompt = `Context from prior analysis stages (JSON): %s`

// ============================================================================
// Multi-Agent Synthesis Prompts
// ============================================================================

// SynthesisSystemPrompt runs the role ensemble in one call and asks the model
// to report each role's contribution plus the consensus.
const SynthesisSystemPrompt = `You are coordinating four specialist agents reviewing a jewelry analysis:
appraiser (value), historian (era and provenance), gemologist (stones and materials),
and copywriter (listing text). Each agent produces a short finding, then you merge
them into a consensus. Respond with ONLY a JSON object:
{
  "agents": [{"role": "appraiser", "output": "...", "confidence": 0.8}],
  "category": "ring",
  "subcategory": "engagement-ring",
  "price": 250.0,
  "description": "2-3 sentence listing-ready description",
  "brand_detected": false,
  "brand_name": "",
  "hallmarks": [],
  "demand_level": "low|medium|high",
  "confidence": 0.8
}
The consensus category must be one the evidence supports; price 0 if unknowable.`

// SynthesisUserPrompt carries every prior producer result.
const SynthesisUserPrompt = `All producer results for this image (JSON): %s`
