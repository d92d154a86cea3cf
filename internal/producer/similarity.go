package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/repository"
)

const similarityTopK = 10

// SimilarityAdapter embeds the vision description and looks up priced
// comparables in the vector collection. Its payload feeds both the price
// blend and the market analysis.
type SimilarityAdapter struct {
	embed  *EmbedClient
	qdrant *repository.QdrantRepository
}

// NewSimilarityAdapter creates the similarity-search adapter.
func NewSimilarityAdapter(embed *EmbedClient, qdrant *repository.QdrantRepository) *SimilarityAdapter {
	return &SimilarityAdapter{embed: embed, qdrant: qdrant}
}

func (a *SimilarityAdapter) Name() string { return domain.StageSimilarity }

func (a *SimilarityAdapter) DependsOn() []string {
	return []string{domain.StageVision}
}

// Run embeds the description and searches the collection.
func (a *SimilarityAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	prior := in.Prior(domain.StageVision)
	if prior == nil || prior.Payload.Vision == nil {
		return failed(domain.StageSimilarity, start, fmt.Errorf("vision stage result missing"))
	}
	text := prior.Payload.Vision.Description
	if text == "" {
		// Degraded upstream: embed the category so the search still runs
		text = prior.Payload.Vision.Category
	}

	vector, err := a.embed.Embed(ctx, text)
	if err != nil {
		return failed(domain.StageSimilarity, start, err)
	}

	hits, err := a.qdrant.Search(ctx, vector, similarityTopK)
	if err != nil {
		return failed(domain.StageSimilarity, start, err)
	}

	items := make([]domain.SimilarItem, 0, len(hits))
	var priceSum, priceMin, priceMax float64
	priced := 0
	for _, hit := range hits {
		item := domain.SimilarItem{
			ID:         hit.ID,
			Similarity: float64(hit.Score),
			Source:     "catalog",
		}
		if hit.Payload != nil {
			item.Price = hit.Payload.Price
		}
		items = append(items, item)

		if item.Price > 0 {
			priceSum += item.Price
			if priced == 0 || item.Price < priceMin {
				priceMin = item.Price
			}
			if item.Price > priceMax {
				priceMax = item.Price
			}
			priced++
		}
	}

	payload := domain.Payload{Similarity: &domain.SimilarityPayload{
		Embedding:    vector,
		SimilarItems: items,
	}}
	if priced > 0 {
		payload.Similarity.AveragePrice = priceSum / float64(priced)
		payload.Similarity.PriceMin = priceMin
		payload.Similarity.PriceMax = priceMax
	}

	// Confidence tracks how close the best neighbor is
	confidence := 0.3
	if len(items) > 0 {
		confidence = clamp01(items[0].Similarity)
	}

	return succeeded(domain.StageSimilarity, start, confidence, payload)
}
