// Command analyze runs the full analysis pipeline on local image files and
// prints the fused analysis and generated listing as JSON. It shares the
// orchestrator with the API server but skips the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/jobs"
	"github.com/maribel/gemlens/internal/logger"
	"github.com/maribel/gemlens/internal/pipeline"
	"github.com/maribel/gemlens/internal/producer"
	"github.com/maribel/gemlens/internal/repository"
	"github.com/maribel/gemlens/internal/service"
	"github.com/maribel/gemlens/internal/storage"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "gemlens-analyze",
	})
	logger.SetDefaultLogger(appLogger)

	mode := flag.String("mode", "standard", "Processing mode: standard, advanced, premium")
	userID := flag.String("user", "cli", "User ID to attribute the analysis to")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		appLogger.Fatal("Usage: analyze [-mode standard|advanced|premium] <image> [image...]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Qdrant.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	adapters := buildAdapters(cfg, objectStorage, storage.NewJPEGOptimizer(objectStorage, 0), qdrantRepo)
	manager := jobs.NewManager(
		jobs.NewMemoryStore(),
		pipeline.NewSequencer(adapters, appLogger),
		pipeline.NewEngine(cfg.Fusion),
		pipeline.NewSynthesizer(cfg.Listing),
		appLogger,
	)
	orchestrator := service.NewOrchestrator(manager, nil, nil, cfg.Modes, appLogger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	exitCode := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			appLogger.WithError(err).Errorf("Failed to read %s", path)
			exitCode = 1
			continue
		}

		result, err := orchestrator.ProcessImage(ctx, *userID, domain.ProcessingMode(*mode), jobs.FileInput{
			Filename: filepath.Base(path),
			Format:   formatFromPath(path),
			Data:     data,
		})
		if err != nil {
			appLogger.WithError(err).Errorf("Analysis failed for %s", path)
			exitCode = 1
			continue
		}

		if err := enc.Encode(result); err != nil {
			appLogger.WithError(err).Fatal("Failed to encode result")
		}
	}
	os.Exit(exitCode)
}

func formatFromPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}

func buildAdapters(cfg *config.Config, store storage.ObjectStorage, optimizer storage.Optimizer, qdrant *repository.QdrantRepository) []producer.Adapter {
	chat := func(ep config.ProducerEndpoint) *producer.ChatClient {
		return producer.NewChatClient(&producer.ChatConfig{
			BaseURL: ep.BaseURL,
			APIKey:  ep.APIKey,
			Model:   ep.Model,
			Timeout: ep.Timeout,
		})
	}

	return []producer.Adapter{
		producer.NewPreprocessor(store, optimizer),
		producer.NewDetectorAdapter(&producer.DetectorConfig{
			BaseURL: cfg.Producers.Detector.BaseURL,
			APIKey:  cfg.Producers.Detector.APIKey,
			Model:   cfg.Producers.Detector.Model,
			Timeout: cfg.Producers.Detector.Timeout,
		}),
		producer.NewVisionAdapter(chat(cfg.Producers.Vision)),
		producer.NewSegmenterAdapter(&producer.SegmenterConfig{
			BaseURL: cfg.Producers.Segmenter.BaseURL,
			APIKey:  cfg.Producers.Segmenter.APIKey,
			Model:   cfg.Producers.Segmenter.Model,
			Timeout: cfg.Producers.Segmenter.Timeout,
		}),
		producer.NewSimilarityAdapter(producer.NewEmbedClient(&producer.EmbedConfig{
			BaseURL:    cfg.Producers.Embedder.BaseURL,
			APIKey:     cfg.Producers.Embedder.APIKey,
			Model:      cfg.Producers.Embedder.Model,
			Dimensions: cfg.Producers.Embedder.Dimensions,
			Timeout:    cfg.Producers.Embedder.Timeout,
		}), qdrant),
		producer.NewVectorStoreAdapter(qdrant),
		producer.NewReasonerAdapter(chat(cfg.Producers.Reasoner)),
		producer.NewSynthesizerAdapter(chat(cfg.Producers.Synthesizer)),
	}
}
