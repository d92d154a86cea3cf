package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maribel/gemlens/internal/api"
	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/jobs"
	"github.com/maribel/gemlens/internal/logger"
	"github.com/maribel/gemlens/internal/pipeline"
	"github.com/maribel/gemlens/internal/producer"
	"github.com/maribel/gemlens/internal/repository"
	"github.com/maribel/gemlens/internal/service"
	"github.com/maribel/gemlens/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	analysisRepo := repository.NewAnalysisRepository(db)
	jobRepo := repository.NewJobRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Qdrant.Dimensions,
	})
	if err != nil {
		log.Fatalf("Failed to initialize Qdrant repository: %v", err)
	}
	defer qdrantRepo.Close()

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
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
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		log.Fatalf("Failed to ensure storage bucket: %v", err)
	}
	optimizer := storage.NewJPEGOptimizer(objectStorage, 0)

	adapters := buildAdapters(cfg, objectStorage, optimizer, qdrantRepo)

	var jobStore jobs.JobStore
	if cfg.Redis.Enabled {
		redisStore, err := jobs.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		jobStore = redisStore
		log.Infof("Job store: redis at %s", cfg.Redis.Addr)
	} else {
		jobStore = jobs.NewMemoryStore()
		log.Infof("Job store: in-memory")
	}

	manager := jobs.NewManager(
		jobStore,
		pipeline.NewSequencer(adapters, log),
		pipeline.NewEngine(cfg.Fusion),
		pipeline.NewSynthesizer(cfg.Listing),
		log,
	)
	orchestrator := service.NewOrchestrator(manager, analysisRepo, jobRepo, cfg.Modes, log)

	router := api.SetupRouter(orchestrator, cfg, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Starting API server on port %d (mode %s)", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Infof("Server exited")
}

// buildAdapters constructs the full adapter set; the sequencer picks the
// subset each mode actually runs.
func buildAdapters(cfg *config.Config, store storage.ObjectStorage, optimizer storage.Optimizer, qdrant *repository.QdrantRepository) []producer.Adapter {
	visionChat := producer.NewChatClient(&producer.ChatConfig{
		BaseURL: cfg.Producers.Vision.BaseURL,
		APIKey:  cfg.Producers.Vision.APIKey,
		Model:   cfg.Producers.Vision.Model,
		Timeout: cfg.Producers.Vision.Timeout,
	})
	reasonerChat := producer.NewChatClient(&producer.ChatConfig{
		BaseURL: cfg.Producers.Reasoner.BaseURL,
		APIKey:  cfg.Producers.Reasoner.APIKey,
		Model:   cfg.Producers.Reasoner.Model,
		Timeout: cfg.Producers.Reasoner.Timeout,
	})
	synthesizerChat := producer.NewChatClient(&producer.ChatConfig{
		BaseURL: cfg.Producers.Synthesizer.BaseURL,
		APIKey:  cfg.Producers.Synthesizer.APIKey,
		Model:   cfg.Producers.Synthesizer.Model,
		Timeout: cfg.Producers.Synthesizer.Timeout,
	})
	embedClient := producer.NewEmbedClient(&producer.EmbedConfig{
		BaseURL:    cfg.Producers.Embedder.BaseURL,
		APIKey:     cfg.Producers.Embedder.APIKey,
		Model:      cfg.Producers.Embedder.Model,
		Dimensions: cfg.Producers.Embedder.Dimensions,
		Timeout:    cfg.Producers.Embedder.Timeout,
	})

	return []producer.Adapter{
		producer.NewPreprocessor(store, optimizer),
		producer.NewDetectorAdapter(&producer.DetectorConfig{
			BaseURL: cfg.Producers.Detector.BaseURL,
			APIKey:  cfg.Producers.Detector.APIKey,
			Model:   cfg.Producers.Detector.Model,
			Timeout: cfg.Producers.Detector.Timeout,
		}),
		producer.NewVisionAdapter(visionChat),
		producer.NewSegmenterAdapter(&producer.SegmenterConfig{
			BaseURL: cfg.Producers.Segmenter.BaseURL,
			APIKey:  cfg.Producers.Segmenter.APIKey,
			Model:   cfg.Producers.Segmenter.Model,
			Timeout: cfg.Producers.Segmenter.Timeout,
		}),
		producer.NewSimilarityAdapter(embedClient, qdrant),
		producer.NewVectorStoreAdapter(qdrant),
		producer.NewReasonerAdapter(reasonerChat),
		producer.NewSynthesizerAdapter(synthesizerChat),
	}
}
