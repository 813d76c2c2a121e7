package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/kyc-ml/internal/logging"
	"github.com/example/kyc-ml/internal/repository"
	"github.com/example/kyc-ml/internal/vision"
)

// ExtractionResult is the response shape of a document face extraction.
type ExtractionResult struct {
	Success    bool   `json:"success"`
	FaceFound  bool   `json:"face_found"`
	FaceBase64 string `json:"face_base64"`
	FaceCount  int    `json:"face_count"`
	Message    string `json:"message"`
}

// ExtractFace crops the largest face out of a document image and returns it
// base64-encoded.
func (uc *ChecksUseCase) ExtractFace(ctx context.Context, document []byte) (string, *ExtractionResult, error) {
	requestID := uuid.NewString()
	start := time.Now()
	opLogger := logging.WithOperation(uc.logger, "usecase.extract_face", requestID)

	docPath, cleanup, err := uc.spillTempImage(document)
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.spill_document", requestID, err)
	}
	defer cleanup()

	extraction, err := uc.detector.ExtractLargestFace(ctx, docPath)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) || errors.Is(err, vision.ErrUnreadableImage) {
			opLogger.Warn("face extraction rejected", zap.Error(err))
			return "", nil, err
		}
		wrapped := logging.NewOperationError("usecase.extract_largest_face", requestID, err)
		opLogger.Error("face extraction failed", zap.Error(wrapped))
		return "", nil, wrapped
	}

	result := &ExtractionResult{
		Success:    true,
		FaceFound:  true,
		FaceBase64: base64.StdEncoding.EncodeToString(extraction.FaceJPEG),
		FaceCount:  extraction.FaceCount,
		Message:    "Largest face extracted",
	}

	log := &repository.CheckLog{
		RequestID: requestID,
		Kind:      repository.KindExtraction,
		Success:   true,
		FaceCount: extraction.FaceCount,
		Details:   fmt.Sprintf("faces:%d crop_bytes:%d", extraction.FaceCount, len(extraction.FaceJPEG)),
		LatencyMs: time.Since(start).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist extraction log", zap.Error(wrapped))
		return "", nil, wrapped
	}

	if err := uc.cacheCheck(ctx, requestID, log); err != nil {
		opLogger.Error("failed to cache extraction result", zap.Error(err))
		return "", nil, err
	}

	opLogger.Info("face extracted", zap.Int("face_count", extraction.FaceCount))
	return requestID, result, nil
}
