package producer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/storage"
)

// Preprocessor is the only local stage: it validates the image, extracts
// dimensions and hash, uploads the original, and stores a web-optimized
// rendition. An image it cannot decode is a hard file-level failure; the
// sequencer aborts the rest of that file's pipeline.
type Preprocessor struct {
	store     storage.ObjectStorage
	optimizer storage.Optimizer
}

// NewPreprocessor creates the preprocessing adapter.
func NewPreprocessor(store storage.ObjectStorage, optimizer storage.Optimizer) *Preprocessor {
	return &Preprocessor{store: store, optimizer: optimizer}
}

func (p *Preprocessor) Name() string { return domain.StagePreprocessing }

func (p *Preprocessor) DependsOn() []string { return nil }

// Run validates and stores the image.
func (p *Preprocessor) Run(ctx context.Context, in *Input) *domain.ProducerResult {
	start := time.Now()

	if len(in.ImageData) == 0 {
		return failed(domain.StagePreprocessing, start, fmt.Errorf("empty image payload"))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(in.ImageData))
	if err != nil {
		return failed(domain.StagePreprocessing, start, fmt.Errorf("unreadable image: %w", err))
	}

	sum := md5.Sum(in.ImageData)
	md5Hash := hex.EncodeToString(sum[:])

	// MD5 prefix bucketing, same scheme for every upload
	key := fmt.Sprintf("%s/%s.%s", md5Hash[:2], md5Hash, format)

	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return failed(domain.StagePreprocessing, start, fmt.Errorf("failed to check storage: %w", err))
	}
	if !exists {
		contentType := storage.ContentTypeForFormat(format)
		if err := p.store.Upload(ctx, key, bytes.NewReader(in.ImageData), int64(len(in.ImageData)), contentType); err != nil {
			return failed(domain.StagePreprocessing, start, fmt.Errorf("failed to upload original: %w", err))
		}
	}

	opt, err := p.optimizer.Optimize(ctx, key, in.ImageData, format)
	if err != nil {
		return failed(domain.StagePreprocessing, start, fmt.Errorf("failed to optimize image: %w", err))
	}

	payload := domain.Payload{Preprocess: &domain.PreprocessPayload{
		Width:          cfg.Width,
		Height:         cfg.Height,
		Format:         format,
		SizeBytes:      int64(len(in.ImageData)),
		MD5Hash:        md5Hash,
		OriginalURL:    p.store.GetURL(key),
		OptimizedURL:   opt.URL,
		OptimizedSize:  opt.Size,
		SavingsPercent: opt.SavingsPercent,
	}}

	// Confidence reflects whether the photo is large enough to analyze well
	confidence := 1.0
	if cfg.Width < 300 || cfg.Height < 300 {
		confidence = 0.6
	}

	return succeeded(domain.StagePreprocessing, start, confidence, payload)
}
