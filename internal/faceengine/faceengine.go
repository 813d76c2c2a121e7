// Package faceengine wraps the dlib-based face recognition toolkit behind a
// small interface so callers and tests do not depend on native bindings.
package faceengine

import (
	"context"
	"errors"
)

// ModelName identifies the embedding model reported in verification results.
const ModelName = "dlib-resnet-v1"

// ErrNoFace is returned when an image contains no detectable face.
var ErrNoFace = errors.New("no face detected")

// ErrUnreadableImage is returned when the engine cannot decode an upload.
var ErrUnreadableImage = errors.New("invalid or unreadable image")

// Result is the outcome of comparing two face images.
type Result struct {
	Verified   bool
	Confidence float64
	Distance   float64
	Model      string
	Threshold  float64
}

// Engine exposes the recognition operations used by the check flows.
type Engine interface {
	// Verify compares the most prominent face of each image and reports
	// the embedding distance against the match threshold.
	Verify(ctx context.Context, livePath, documentPath string) (*Result, error)
	// CountFaces reports how many faces the engine detects in an image.
	CountFaces(ctx context.Context, imagePath string) (int, error)
	Close() error
}
