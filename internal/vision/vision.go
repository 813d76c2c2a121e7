// Package vision wraps the classical computer-vision primitives used for
// document face extraction and image quality heuristics.
package vision

import (
	"context"
	"errors"
)

// ErrUnreadableImage is returned when an upload cannot be decoded.
var ErrUnreadableImage = errors.New("invalid or unreadable image")

// ErrNoFace is returned when the cascade finds no face in a document image.
var ErrNoFace = errors.New("no face detected")

// Extraction holds the cropped face produced from a document image.
type Extraction struct {
	FaceJPEG  []byte
	FaceCount int
}

// Quality carries the deterministic heuristics computed for liveness checks.
type Quality struct {
	BlurVariance float64
	Brightness   float64
}

// Detector exposes the vision operations used by the check flows.
type Detector interface {
	// ExtractLargestFace locates faces in a document image, crops the
	// largest one with padding, and returns it JPEG-encoded.
	ExtractLargestFace(ctx context.Context, imagePath string) (*Extraction, error)
	// QualityMetrics computes blur variance and mean brightness over the
	// grayscale pixel buffer.
	QualityMetrics(ctx context.Context, imagePath string) (*Quality, error)
	Close() error
}
