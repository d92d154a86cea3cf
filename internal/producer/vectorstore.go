package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/repository"
)

const classifyTopK = 5

// VectorStoreAdapter upserts the image's embedding into the jewelry
// collection and classifies it by neighbor vote. The upsert is a real side
// effect: it only counts as done when the stage succeeds.
type VectorStoreAdapter struct {
	qdrant *repository.QdrantRepository
}

// NewVectorStoreAdapter creates the vector-store adapter.
func NewVectorStoreAdapter(qdrant *repository.QdrantRepository) *VectorStoreAdapter {
	return &VectorStoreAdapter{qdrant: qdrant}
}

func (a *VectorStoreAdapter) Name() string { return domain.StageVectorStore }

func (a *VectorStoreAdapter) DependsOn() []string {
	return []string{domain.StageSimilarity}
}

// Run upserts the embedding and queries the store's classification.
func (a *VectorStoreAdapter) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	sim := in.Prior(domain.StageSimilarity)
	if sim == nil || sim.Payload.Similarity == nil || len(sim.Payload.Similarity.Embedding) == 0 {
		return failed(domain.StageVectorStore, start, fmt.Errorf("no embedding available from similarity stage"))
	}
	vector := sim.Payload.Similarity.Embedding

	description := ""
	category := "jewelry"
	if vis := in.Prior(domain.StageVision); vis != nil && vis.Payload.Vision != nil {
		description = vis.Payload.Vision.Description
		if vis.Payload.Vision.Category != "" {
			category = vis.Payload.Vision.Category
		}
	}
	storageURL := ""
	if pre := in.Prior(domain.StagePreprocessing); pre != nil && pre.Payload.Preprocess != nil {
		storageURL = pre.Payload.Preprocess.OptimizedURL
	}

	payload := &repository.JewelPayload{
		AnalysisID:  in.AnalysisID,
		UserID:      in.UserID,
		Category:    category,
		Description: description,
		StorageURL:  storageURL,
	}
	if err := a.qdrant.Upsert(ctx, in.AnalysisID, vector, payload); err != nil {
		return failed(domain.StageVectorStore, start, err)
	}

	hits, err := a.qdrant.Search(ctx, vector, classifyTopK+1)
	if err != nil {
		// Roll the upsert back so a half-applied side effect does not linger
		if delErr := a.qdrant.Delete(ctx, in.AnalysisID); delErr != nil {
			return failed(domain.StageVectorStore, start, fmt.Errorf("classification query failed: %v (rollback also failed: %v)", err, delErr))
		}
		return failed(domain.StageVectorStore, start, err)
	}

	cat, subcat, conf, neighbors := classifyByNeighbors(hits, in.AnalysisID)
	if cat == "" {
		cat = category
	}

	result := domain.Payload{VectorStore: &domain.VectorStorePayload{
		VectorID:    in.AnalysisID,
		Category:    cat,
		Subcategory: subcat,
		Confidence:  conf,
		Neighbors:   neighbors,
	}}

	return succeeded(domain.StageVectorStore, start, conf, result)
}

// classifyByNeighbors votes on category across the similarity hits, weighted
// by score, skipping the point we just inserted.
func classifyByNeighbors(hits []repository.SearchResult, selfID string) (category, subcategory string, confidence float64, neighbors int) {
	votes := map[string]float64{}
	subByCat := map[string]string{}
	var total float64

	for _, hit := range hits {
		if hit.ID == selfID || hit.Payload == nil || hit.Payload.Category == "" {
			continue
		}
		neighbors++
		w := float64(hit.Score)
		if w < 0 {
			w = 0
		}
		votes[hit.Payload.Category] += w
		total += w
		if _, ok := subByCat[hit.Payload.Category]; !ok && hit.Payload.Subcategory != "" {
			subByCat[hit.Payload.Category] = hit.Payload.Subcategory
		}
	}

	// Ties resolve to the lexicographically smaller category so the vote is
	// independent of map iteration order.
	var bestWeight float64
	for cat, w := range votes {
		if w > bestWeight || (w == bestWeight && w > 0 && (category == "" || cat < category)) {
			bestWeight = w
			category = cat
		}
	}
	if total > 0 {
		confidence = bestWeight / total
	}
	subcategory = subByCat[category]
	return category, subcategory, clamp01(confidence), neighbors
}
