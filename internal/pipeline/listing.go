package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
)

// shippingProfiles map categories to typical packed weight and box size.
var shippingProfiles = map[string]domain.ShippingEstimate{
	"ring":     {WeightGrams: 50, Dimensions: "10x10x5 cm"},
	"earrings": {WeightGrams: 50, Dimensions: "10x10x5 cm"},
	"pendant":  {WeightGrams: 80, Dimensions: "12x12x4 cm"},
	"necklace": {WeightGrams: 100, Dimensions: "15x15x5 cm"},
	"bracelet": {WeightGrams: 100, Dimensions: "15x15x5 cm"},
	"brooch":   {WeightGrams: 80, Dimensions: "12x12x4 cm"},
	"watch":    {WeightGrams: 250, Dimensions: "15x12x8 cm"},
	"jewelry":  {WeightGrams: 100, Dimensions: "15x15x5 cm"},
}

// careByMaterial holds per-material care lines; the generic lines are always
// appended.
var careByMaterial = map[string][]string{
	"gold":            {"Polish gently with a soft jewelry cloth to maintain shine."},
	"silver":          {"Store in an anti-tarnish pouch and polish with a silver cloth."},
	"platinum":        {"Have a professional re-polish the piece periodically to renew its patina."},
	"pearl":           {"Wipe pearls with a damp cloth after wearing; never use chemical cleaners."},
	"stainless steel": {"Wash with mild soapy water and dry thoroughly."},
}

var careGeneric = []string{
	"Keep away from perfumes, lotions, and household chemicals.",
	"Store separately to avoid scratches.",
}

// Synthesizer templates a marketplace listing from a fused analysis. It is
// deterministic: no model calls, only string assembly from the analysis.
type Synthesizer struct {
	cfg config.ListingConfig
}

// NewSynthesizer creates a listing synthesizer with the given tuning.
func NewSynthesizer(cfg config.ListingConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// Build assembles the full listing for one analysis.
func (s *Synthesizer) Build(analysis *domain.IntegratedAnalysis) *domain.Listing {
	title := s.buildTitle(analysis)
	description := buildDescription(analysis)
	keywords := buildKeywords(analysis)

	maxTags := s.cfg.MaxTags
	if maxTags <= 0 {
		maxTags = 10
	}
	tags := keywords
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}

	freeAt := s.cfg.FreeShippingPrice
	if freeAt <= 0 {
		freeAt = 100
	}
	shipping, ok := shippingProfiles[analysis.Category]
	if !ok {
		shipping = shippingProfiles["jewelry"]
	}
	shipping.FreeShipping = analysis.Price.Recommended >= freeAt

	return &domain.Listing{
		Title:       title,
		Description: description,
		SEO: domain.SEOBlock{
			Title:       title,
			Description: seoDescription(description),
			Keywords:    keywords,
			Tags:        tags,
			Score:       seoScore(title, description, keywords),
		},
		CareInstructions: buildCare(analysis),
		Shipping:         shipping,
	}
}

// buildTitle joins the title parts in fixed order and truncates at a word
// boundary to the configured maximum.
func (s *Synthesizer) buildTitle(analysis *domain.IntegratedAnalysis) string {
	var parts []string

	switch {
	case analysis.Brand.Detected && analysis.Brand.Name != "":
		parts = append(parts, analysis.Brand.Name)
	case analysis.Style.Era != "" && analysis.Style.Era != "contemporary":
		parts = append(parts, titleCase(analysis.Style.Era))
	}
	if len(analysis.Materials) > 0 {
		parts = append(parts, titleCase(analysis.Materials[0].Material))
	}
	parts = append(parts, titleCase(analysis.Category))
	if len(analysis.Gemstones) > 0 {
		parts = append(parts, "with "+titleCase(analysis.Gemstones[0].Stone))
	}
	if analysis.Condition.Overall == "excellent" || analysis.Condition.Overall == "very-good" {
		parts = append(parts, "in "+strings.ReplaceAll(analysis.Condition.Overall, "-", " ")+" condition")
	}

	maxLen := s.cfg.TitleMaxLen
	if maxLen <= 0 {
		maxLen = 70
	}
	return truncateAtWord(strings.Join(parts, " "), maxLen)
}

// buildDescription assembles the long description in fixed sentence order:
// opener, materials, gemstones, style, condition, authenticity, brand, care
// teaser, investment note when demand is high, closing.
func buildDescription(analysis *domain.IntegratedAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "This %s %s is a distinctive piece for any collection.",
		analysis.Style.Aesthetic, analysis.Category)

	if len(analysis.Materials) > 0 {
		names := make([]string, 0, len(analysis.Materials))
		for _, m := range analysis.Materials {
			names = append(names, m.Material)
		}
		fmt.Fprintf(&b, " Crafted from %s.", joinAnd(names))
	}
	if len(analysis.Gemstones) > 0 {
		names := make([]string, 0, len(analysis.Gemstones))
		for _, g := range analysis.Gemstones {
			names = append(names, g.Stone)
		}
		fmt.Fprintf(&b, " Set with %s.", joinAnd(names))
	}

	fmt.Fprintf(&b, " The %s design reflects a %s era sensibility.",
		analysis.Style.Design, analysis.Style.Era)
	fmt.Fprintf(&b, " Condition is rated %s (%d/100).",
		strings.ReplaceAll(analysis.Condition.Overall, "-", " "), analysis.Condition.Score)

	if analysis.Authenticity.Verified {
		b.WriteString(" Authenticity indicators were verified during analysis.")
	}
	if analysis.Brand.Detected && analysis.Brand.Name != "" {
		fmt.Fprintf(&b, " Attributed to %s.", analysis.Brand.Name)
	}

	if care := buildCare(analysis); len(care) > 0 {
		fmt.Fprintf(&b, " Care tip: %s", care[0])
	}
	if analysis.Market.DemandLevel == "high" {
		b.WriteString(" High market demand makes this piece a sound investment.")
	}

	b.WriteString(" Ships carefully packaged with tracking.")
	return b.String()
}

// buildKeywords collects the searchable terms: category, subcategory,
// materials, gemstones, era, design, aesthetic, the fixed marketplace terms,
// and brand, deduplicated in that order.
func buildKeywords(analysis *domain.IntegratedAnalysis) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || term == "general" || seen[term] {
			return
		}
		seen[term] = true
		out = append(out, term)
	}

	add(analysis.Category)
	add(analysis.Subcategory)
	for _, m := range analysis.Materials {
		add(m.Material)
	}
	for _, g := range analysis.Gemstones {
		add(g.Stone)
	}
	add(analysis.Style.Era)
	add(analysis.Style.Design)
	add(analysis.Style.Aesthetic)
	add("vintage jewelry")
	add("pre-owned jewelry")
	if analysis.Brand.Detected {
		add(analysis.Brand.Name)
	}
	return out
}

func buildCare(analysis *domain.IntegratedAnalysis) []string {
	var out []string
	var materials []string
	for _, m := range analysis.Materials {
		materials = append(materials, m.Material)
	}
	for _, g := range analysis.Gemstones {
		if strings.EqualFold(g.Stone, "pearl") {
			materials = append(materials, "pearl")
		}
	}
	sort.Strings(materials)
	seen := make(map[string]bool)
	for _, m := range materials {
		for _, line := range careByMaterial[m] {
			if !seen[line] {
				seen[line] = true
				out = append(out, line)
			}
		}
	}
	return append(out, careGeneric...)
}

// seoScore awards up to 40 points for a title between 30 and 60 characters,
// 40 for a description between 150 and 300, and 20 for at least eight
// keywords. Partial bands earn half credit.
func seoScore(title, description string, keywords []string) int {
	score := 0

	switch n := len(title); {
	case n >= 30 && n <= 60:
		score += 40
	case n >= 20 && n <= 70:
		score += 20
	}
	switch n := len(description); {
	case n >= 150 && n <= 300:
		score += 40
	case n >= 80:
		score += 20
	}
	if len(keywords) >= 8 {
		score += 20
	} else if len(keywords) >= 5 {
		score += 10
	}
	return score
}

// seoDescription trims the long description to a meta-description length.
func seoDescription(description string) string {
	const maxLen = 160
	return truncateAtWord(description, maxLen)
}

// truncateAtWord cuts s to at most maxLen runes without splitting a word;
// if no space exists inside the limit it hard-cuts, never mid-rune.
func truncateAtWord(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := 0
	for i, r := range runes[:maxLen+1] {
		if r == ' ' {
			cut = i
		}
	}
	if cut == 0 {
		return string(runes[:maxLen])
	}
	return strings.TrimRight(string(runes[:cut]), " ,.")
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
