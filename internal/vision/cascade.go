package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	scaleFactor  = 1.1
	minNeighbors = 5
	minFaceSize  = 30
	paddingRatio = 0.2
)

// CascadeDetector implements Detector with an OpenCV Haar cascade.
// detectMultiScale is not reentrant, so detection runs under a mutex.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewCascadeDetector loads the frontal face cascade from cascadeFile.
func NewCascadeDetector(cascadeFile string, logger *zap.Logger) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadeFile) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade classifier from %s", cascadeFile)
	}
	logger.Info("cascade classifier loaded", zap.String("cascade_file", cascadeFile))
	return &CascadeDetector{classifier: classifier, logger: logger.Named("vision")}, nil
}

// ExtractLargestFace detects faces over the equalized grayscale image,
// crops the largest box with padding, and JPEG-encodes the crop.
func (d *CascadeDetector) ExtractLargestFace(ctx context.Context, imagePath string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, ErrUnreadableImage
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	d.mu.Lock()
	faces := d.classifier.DetectMultiScaleWithParams(
		equalized,
		scaleFactor,
		minNeighbors,
		0,
		image.Pt(minFaceSize, minFaceSize),
		image.Pt(0, 0),
	)
	d.mu.Unlock()

	if len(faces) == 0 {
		return nil, ErrNoFace
	}

	padded := padRect(largestRect(faces), img.Cols(), img.Rows(), paddingRatio)
	region := img.Region(padded)
	defer region.Close()
	crop := region.Clone()
	defer crop.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, crop)
	if err != nil {
		return nil, fmt.Errorf("encode face crop: %w", err)
	}
	defer buf.Close()

	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())

	return &Extraction{FaceJPEG: encoded, FaceCount: len(faces)}, nil
}

// QualityMetrics computes the Laplacian blur variance and mean brightness
// of the grayscale image.
func (d *CascadeDetector) QualityMetrics(ctx context.Context, imagePath string) (*Quality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, ErrUnreadableImage
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	return &Quality{
		BlurVariance: matVariance(laplacian),
		Brightness:   matMean(gray),
	}, nil
}

// Close releases the native classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

func largestRect(rects []image.Rectangle) image.Rectangle {
	best := rects[0]
	bestArea := best.Dx() * best.Dy()
	for _, r := range rects[1:] {
		if area := r.Dx() * r.Dy(); area > bestArea {
			best = r
			bestArea = area
		}
	}
	return best
}

// padRect grows rect by ratio on each side, clamped to the image bounds.
func padRect(rect image.Rectangle, width, height int, ratio float64) image.Rectangle {
	padX := int(float64(rect.Dx()) * ratio)
	padY := int(float64(rect.Dy()) * ratio)

	x1 := rect.Min.X - padX
	y1 := rect.Min.Y - padY
	x2 := rect.Max.X + padX
	y2 := rect.Max.Y + padY

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > width {
		x2 = width
	}
	if y2 > height {
		y2 = height
	}
	return image.Rect(x1, y1, x2, y2)
}

func matMean(img gocv.Mat) float64 {
	total := 0.0
	count := 0
	for i := 0; i < img.Rows(); i++ {
		for j := 0; j < img.Cols(); j++ {
			if val, ok := pixelValue(img, i, j); ok {
				total += val
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func matVariance(img gocv.Mat) float64 {
	mean := matMean(img)
	total := 0.0
	count := 0
	for i := 0; i < img.Rows(); i++ {
		for j := 0; j < img.Cols(); j++ {
			if val, ok := pixelValue(img, i, j); ok {
				diff := val - mean
				total += diff * diff
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func pixelValue(img gocv.Mat, i, j int) (float64, bool) {
	switch img.Type() {
	case gocv.MatTypeCV8U:
		return float64(img.GetUCharAt(i, j)), true
	case gocv.MatTypeCV64F:
		return img.GetDoubleAt(i, j), true
	default:
		return 0, false
	}
}
