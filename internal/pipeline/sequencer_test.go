package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/producer"
)

type stubAdapter struct {
	name    string
	deps    []string
	succeed bool
	ran     *[]string
}

func (a *stubAdapter) Name() string        { return a.name }
func (a *stubAdapter) DependsOn() []string { return a.deps }

func (a *stubAdapter) Run(_ context.Context, _ *producer.Input) *domain.ProducerResult {
	if a.ran != nil {
		*a.ran = append(*a.ran, a.name)
	}
	r := &domain.ProducerResult{Stage: a.name, Payload: producer.FallbackPayload(a.name)}
	if a.succeed {
		r.Succeeded = true
		r.Confidence = 0.8
	} else {
		r.Error = "stub failure"
	}
	return r
}

func stubSet(ran *[]string, failing map[string]bool) []producer.Adapter {
	adapters := make([]producer.Adapter, 0, len(domain.StageOrder))
	for _, stage := range domain.StageOrder {
		adapters = append(adapters, &stubAdapter{
			name:    stage,
			succeed: !failing[stage],
			ran:     ran,
		})
	}
	return adapters
}

func TestStagesForMode(t *testing.T) {
	tests := []struct {
		mode domain.ProcessingMode
		want []string
	}{
		{domain.ModeStandard, []string{
			domain.StagePreprocessing, domain.StageVision, domain.StageSynthesis,
		}},
		{domain.ModeAdvanced, []string{
			domain.StagePreprocessing, domain.StageDetection, domain.StageVision,
			domain.StageSegmentation, domain.StageSynthesis,
		}},
		{domain.ModePremium, domain.StageOrder},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got := StagesForMode(tt.mode)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stages = %v, want %v", got, tt.want)
			}
			// Every mode must be a sub-sequence of the canonical order.
			i := 0
			for _, stage := range domain.StageOrder {
				if i < len(got) && got[i] == stage {
					i++
				}
			}
			if i != len(got) {
				t.Errorf("stages %v are not a sub-sequence of the canonical order", got)
			}
		})
	}
}

func TestSequencerRunsStagesInOrder(t *testing.T) {
	var ran []string
	seq := NewSequencer(stubSet(&ran, nil), nil)

	stages := StagesForMode(domain.ModePremium)
	results, err := seq.Run(context.Background(), &producer.Input{}, stages, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(ran, stages) {
		t.Errorf("execution order = %v, want %v", ran, stages)
	}
	if len(results) != len(stages) {
		t.Errorf("results = %d, want %d", len(results), len(stages))
	}
}

func TestSequencerContinuesPastMidStageFailure(t *testing.T) {
	var ran []string
	seq := NewSequencer(stubSet(&ran, map[string]bool{domain.StageVision: true}), nil)

	stages := StagesForMode(domain.ModeStandard)
	in := &producer.Input{}
	results, err := seq.Run(context.Background(), in, stages, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want failure recorded but pipeline continued", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want all 3 stages", len(results))
	}
	if results[1].Succeeded {
		t.Error("vision result marked succeeded, want failed")
	}
	if results[1].Payload.Vision == nil {
		t.Error("failed vision result missing its fallback payload")
	}
	if !results[2].Succeeded {
		t.Error("synthesis should still run after the vision failure")
	}
	if in.Results[domain.StageVision] != results[1] {
		t.Error("failed result not visible to later stages via Input.Results")
	}
}

func TestSequencerAbortsOnPreprocessingFailure(t *testing.T) {
	var ran []string
	seq := NewSequencer(stubSet(&ran, map[string]bool{domain.StagePreprocessing: true}), nil)

	stages := StagesForMode(domain.ModeStandard)
	results, err := seq.Run(context.Background(), &producer.Input{}, stages, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want abort on preprocessing failure")
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want only the preprocessing result", len(results))
	}
	if len(ran) != 1 {
		t.Errorf("stages run = %v, want nothing past preprocessing", ran)
	}
}

func TestSequencerProgressCallback(t *testing.T) {
	seq := NewSequencer(stubSet(nil, nil), nil)

	type tick struct {
		percent int
		stage   string
	}
	var ticks []tick
	stages := StagesForMode(domain.ModeStandard)
	_, err := seq.Run(context.Background(), &producer.Input{}, stages, func(percent int, stage string) {
		ticks = append(ticks, tick{percent, stage})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []tick{
		{33, domain.StagePreprocessing},
		{66, domain.StageVision},
		{100, domain.StageSynthesis},
	}
	if !reflect.DeepEqual(ticks, want) {
		t.Errorf("progress = %v, want %v", ticks, want)
	}
}

func TestSequencerMissingAdapter(t *testing.T) {
	seq := NewSequencer(nil, nil)
	_, err := seq.Run(context.Background(), &producer.Input{}, []string{domain.StageVision}, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want missing-adapter error")
	}
}

func TestSequencerHonorsCancellation(t *testing.T) {
	var ran []string
	seq := NewSequencer(stubSet(&ran, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seq.Run(ctx, &producer.Input{}, StagesForMode(domain.ModeStandard), nil)
	if err == nil {
		t.Fatal("Run() error = nil, want cancellation error")
	}
	if len(ran) != 0 {
		t.Errorf("stages run after cancel = %v, want none", ran)
	}
}
