package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// OptimizeResult describes the stored web rendition of an image.
type OptimizeResult struct {
	Key            string  `json:"key"`
	URL            string  `json:"url"`
	Format         string  `json:"format"`
	Size           int64   `json:"size"`
	SavingsPercent float64 `json:"savings_percent"`
}

// Optimizer produces and stores a web-optimized rendition of an uploaded
// image. Implementations must be safe for concurrent use.
type Optimizer interface {
	Optimize(ctx context.Context, key string, data []byte, format string) (*OptimizeResult, error)
}

// JPEGOptimizer re-encodes images to baseline JPEG and uploads the rendition
// next to the original. Animated GIFs are stored as-is; re-encoding would
// drop frames.
type JPEGOptimizer struct {
	store   ObjectStorage
	quality int
}

// NewJPEGOptimizer creates an optimizer writing through the given storage.
func NewJPEGOptimizer(store ObjectStorage, quality int) *JPEGOptimizer {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &JPEGOptimizer{store: store, quality: quality}
}

// Optimize re-encodes data and uploads the result under key + ".web.jpg".
func (o *JPEGOptimizer) Optimize(ctx context.Context, key string, data []byte, format string) (*OptimizeResult, error) {
	if format == "gif" {
		return o.passthrough(ctx, key, data, format)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for optimization: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode optimized image: %w", err)
	}

	// A rendition larger than the original is not an optimization
	if buf.Len() >= len(data) {
		return o.passthrough(ctx, key, data, format)
	}

	webKey := key + ".web.jpg"
	if err := o.store.Upload(ctx, webKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return nil, fmt.Errorf("failed to upload optimized image: %w", err)
	}

	savings := 100 * (1 - float64(buf.Len())/float64(len(data)))
	return &OptimizeResult{
		Key:            webKey,
		URL:            o.store.GetURL(webKey),
		Format:         "jpeg",
		Size:           int64(buf.Len()),
		SavingsPercent: savings,
	}, nil
}

// passthrough stores the original bytes as the web rendition.
func (o *JPEGOptimizer) passthrough(ctx context.Context, key string, data []byte, format string) (*OptimizeResult, error) {
	webKey := fmt.Sprintf("%s.web.%s", key, format)
	contentType := ContentTypeForFormat(format)
	if err := o.store.Upload(ctx, webKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("failed to upload web rendition: %w", err)
	}
	return &OptimizeResult{
		Key:            webKey,
		URL:            o.store.GetURL(webKey),
		Format:         format,
		Size:           int64(len(data)),
		SavingsPercent: 0,
	}, nil
}

// ContentTypeForFormat maps an image format extension to its MIME type.
func ContentTypeForFormat(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
