package faceengine

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"sync"

	"github.com/Kagami/go-face"
	"go.uber.org/zap"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// DlibEngine implements Engine on top of go-face. The recognizer holds
// native dlib state, so calls are serialized through a mutex.
type DlibEngine struct {
	rec       *face.Recognizer
	threshold float64
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewDlibEngine loads the dlib models from modelDir. The directory must
// contain shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat.
func NewDlibEngine(modelDir string, threshold float64, logger *zap.Logger) (*DlibEngine, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", modelDir, err)
	}
	logger.Info("face recognition models loaded", zap.String("model_dir", modelDir))
	return &DlibEngine{rec: rec, threshold: threshold, logger: logger.Named("faceengine")}, nil
}

// Verify detects the largest face in each image, computes the Euclidean
// distance between their descriptors, and compares it to the threshold.
func (e *DlibEngine) Verify(ctx context.Context, livePath, documentPath string) (*Result, error) {
	liveDesc, err := e.largestDescriptor(ctx, livePath)
	if err != nil {
		return nil, err
	}
	docDesc, err := e.largestDescriptor(ctx, documentPath)
	if err != nil {
		return nil, err
	}

	distance := euclideanDistance(liveDesc, docDesc)
	return &Result{
		Verified:   distance <= e.threshold,
		Confidence: math.Max(0, 1-distance),
		Distance:   distance,
		Model:      ModelName,
		Threshold:  e.threshold,
	}, nil
}

// CountFaces reports the number of faces detected in the image.
func (e *DlibEngine) CountFaces(ctx context.Context, imagePath string) (int, error) {
	faces, err := e.recognize(ctx, imagePath)
	if err != nil {
		return 0, err
	}
	return len(faces), nil
}

// Close releases the native recognizer.
func (e *DlibEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}

func (e *DlibEngine) largestDescriptor(ctx context.Context, imagePath string) (face.Descriptor, error) {
	faces, err := e.recognize(ctx, imagePath)
	if err != nil {
		return face.Descriptor{}, err
	}
	if len(faces) == 0 {
		return face.Descriptor{}, ErrNoFace
	}

	best := 0
	bestArea := 0
	for i, f := range faces {
		area := f.Rectangle.Dx() * f.Rectangle.Dy()
		if area > bestArea {
			best = i
			bestArea = area
		}
	}
	return faces[best].Descriptor, nil
}

func (e *DlibEngine) recognize(ctx context.Context, imagePath string) ([]face.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}
	data, err = toJPEG(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	faces, err := e.rec.Recognize(data)
	if err != nil {
		// go-face fails here when the payload is not a decodable image.
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return faces, nil
}

// toJPEG transcodes PNG uploads; go-face only decodes JPEG data.
func toJPEG(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func euclideanDistance(d1, d2 face.Descriptor) float64 {
	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
