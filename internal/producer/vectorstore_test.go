package producer

import (
	"testing"

	"github.com/maribel/gemlens/internal/repository"
)

func hit(id, category, subcategory string, score float32) repository.SearchResult {
	return repository.SearchResult{
		ID:    id,
		Score: score,
		Payload: &repository.JewelPayload{
			Category:    category,
			Subcategory: subcategory,
		},
	}
}

func TestClassifyByNeighbors(t *testing.T) {
	tests := []struct {
		name          string
		hits          []repository.SearchResult
		wantCategory  string
		wantNeighbors int
	}{
		{
			name: "heaviest category wins",
			hits: []repository.SearchResult{
				hit("a", "ring", "solitaire ring", 0.9),
				hit("b", "ring", "", 0.8),
				hit("c", "necklace", "", 0.7),
			},
			wantCategory:  "ring",
			wantNeighbors: 3,
		},
		{
			name: "self hit is skipped",
			hits: []repository.SearchResult{
				hit("self", "brooch", "", 1.0),
				hit("a", "ring", "", 0.5),
			},
			wantCategory:  "ring",
			wantNeighbors: 1,
		},
		{
			name: "equal weights break lexicographically",
			hits: []repository.SearchResult{
				hit("a", "ring", "", 0.5),
				hit("b", "necklace", "", 0.5),
			},
			wantCategory:  "necklace",
			wantNeighbors: 2,
		},
		{
			name:          "no usable neighbors",
			hits:          []repository.SearchResult{{ID: "a", Score: 0.5}},
			wantCategory:  "",
			wantNeighbors: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				category, _, _, neighbors := classifyByNeighbors(tt.hits, "self")
				if category != tt.wantCategory {
					t.Fatalf("category = %q, want %q", category, tt.wantCategory)
				}
				if neighbors != tt.wantNeighbors {
					t.Fatalf("neighbors = %d, want %d", neighbors, tt.wantNeighbors)
				}
			}
		})
	}
}

func TestClassifyConfidenceIsVoteShare(t *testing.T) {
	hits := []repository.SearchResult{
		hit("a", "ring", "", 0.6),
		hit("b", "necklace", "", 0.2),
		hit("c", "ring", "", 0.2),
	}
	_, _, confidence, _ := classifyByNeighbors(hits, "self")
	if confidence < 0.79 || confidence > 0.81 {
		t.Errorf("confidence = %v, want the winning vote share 0.8", confidence)
	}
}
