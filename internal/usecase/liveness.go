package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/kyc-ml/internal/faceengine"
	"github.com/example/kyc-ml/internal/logging"
	"github.com/example/kyc-ml/internal/repository"
	"github.com/example/kyc-ml/internal/vision"
)

// LivenessMethod names the heuristic used for liveness checks.
const LivenessMethod = "basic_quality_check"

const (
	minBrightness = 60.0
	maxBrightness = 200.0
)

// LivenessResult is the response shape of a liveness check.
type LivenessResult struct {
	IsLive     bool    `json:"is_live"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Message    string  `json:"message"`
}

// DetectLiveness checks that the photo contains a face and scores it on
// blur variance and brightness.
func (uc *ChecksUseCase) DetectLiveness(ctx context.Context, photo []byte) (string, *LivenessResult, error) {
	requestID := uuid.NewString()
	start := time.Now()
	opLogger := logging.WithOperation(uc.logger, "usecase.detect_liveness", requestID)

	photoPath, cleanup, err := uc.spillTempImage(photo)
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.spill_photo", requestID, err)
	}
	defer cleanup()

	faceCount, err := uc.engine.CountFaces(ctx, photoPath)
	if err != nil {
		if errors.Is(err, faceengine.ErrUnreadableImage) {
			opLogger.Warn("liveness check rejected", zap.Error(err))
			return "", nil, err
		}
		wrapped := logging.NewOperationError("usecase.count_faces", requestID, err)
		opLogger.Error("liveness face detection failed", zap.Error(wrapped))
		return "", nil, wrapped
	}
	if faceCount == 0 {
		opLogger.Warn("no face detected during liveness check")
		return "", nil, faceengine.ErrNoFace
	}

	quality, err := uc.detector.QualityMetrics(ctx, photoPath)
	if err != nil {
		if errors.Is(err, vision.ErrUnreadableImage) {
			opLogger.Warn("liveness check rejected", zap.Error(err))
			return "", nil, err
		}
		wrapped := logging.NewOperationError("usecase.quality_metrics", requestID, err)
		opLogger.Error("liveness heuristics failed", zap.Error(wrapped))
		return "", nil, wrapped
	}

	isLive, confidence, message := scoreLiveness(quality, uc.blurThreshold)
	result := &LivenessResult{
		IsLive:     isLive,
		Confidence: confidence,
		Method:     LivenessMethod,
		Message:    message,
	}

	log := &repository.CheckLog{
		RequestID:  requestID,
		Kind:       repository.KindLiveness,
		Success:    isLive,
		Confidence: confidence,
		FaceCount:  faceCount,
		Details:    fmt.Sprintf("blur:%.2f brightness:%.2f", quality.BlurVariance, quality.Brightness),
		LatencyMs:  time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist liveness log", zap.Error(wrapped))
		return "", nil, wrapped
	}

	if err := uc.cacheCheck(ctx, requestID, log); err != nil {
		opLogger.Error("failed to cache liveness result", zap.Error(err))
		return "", nil, err
	}

	opLogger.Info("liveness check completed",
		zap.Bool("is_live", isLive),
		zap.Float64("blur_variance", quality.BlurVariance),
		zap.Float64("brightness", quality.Brightness),
	)
	return requestID, result, nil
}

// scoreLiveness combines the blur and brightness heuristics. A sharp image
// scores up to 1.0 on blur; brightness passes only inside the accepted band.
func scoreLiveness(quality *vision.Quality, blurThreshold float64) (bool, float64, string) {
	blurScore := math.Min(1, quality.BlurVariance/blurThreshold)
	brightnessScore := 0.0
	if quality.Brightness >= minBrightness && quality.Brightness <= maxBrightness {
		brightnessScore = 1.0
	}

	confidence := math.Round((blurScore+brightnessScore)/2*100) / 100
	isLive := quality.BlurVariance > blurThreshold*0.5 && brightnessScore > 0

	message := "Liveness indicators weak"
	if isLive {
		message = "Liveness indicators passed"
	}
	return isLive, confidence, message
}
