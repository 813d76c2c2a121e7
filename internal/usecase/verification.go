package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/kyc-ml/internal/faceengine"
	"github.com/example/kyc-ml/internal/logging"
	"github.com/example/kyc-ml/internal/repository"
)

// VerificationResult is the response shape of a face verification check.
type VerificationResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
	Model      string  `json:"model"`
	Threshold  float64 `json:"threshold"`
}

type cachedCheck struct {
	RequestID  string    `json:"request_id"`
	Kind       string    `json:"kind"`
	Success    bool      `json:"success"`
	Confidence float64   `json:"confidence"`
	Distance   float64   `json:"distance"`
	FaceCount  int       `json:"face_count"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

func cacheKey(requestID string) string {
	return fmt.Sprintf("check:%s", requestID)
}

// VerifyFaces compares a live photo against a document photo and records
// the outcome. Both uploads are spilled to temp files that are removed
// before the call returns.
func (uc *ChecksUseCase) VerifyFaces(ctx context.Context, livePhoto, documentPhoto []byte) (string, *VerificationResult, error) {
	requestID := uuid.NewString()
	start := time.Now()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_faces", requestID)

	livePath, cleanupLive, err := uc.spillTempImage(livePhoto)
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.spill_live_photo", requestID, err)
	}
	defer cleanupLive()

	docPath, cleanupDoc, err := uc.spillTempImage(documentPhoto)
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.spill_document_photo", requestID, err)
	}
	defer cleanupDoc()

	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey(requestID), "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	engineResult, err := uc.engine.Verify(ctx, livePath, docPath)
	if err != nil {
		if errors.Is(err, faceengine.ErrNoFace) || errors.Is(err, faceengine.ErrUnreadableImage) {
			opLogger.Warn("verification rejected", zap.Error(err))
			return "", nil, err
		}
		wrapped := logging.NewOperationError("usecase.engine_verify", requestID, err)
		opLogger.Error("face verification failed", zap.Error(wrapped))
		return "", nil, wrapped
	}

	result := &VerificationResult{
		Verified:   engineResult.Verified,
		Confidence: engineResult.Confidence,
		Distance:   engineResult.Distance,
		Model:      engineResult.Model,
		Threshold:  engineResult.Threshold,
	}

	log := &repository.CheckLog{
		RequestID:  requestID,
		Kind:       repository.KindVerification,
		Success:    result.Verified,
		Confidence: result.Confidence,
		Distance:   result.Distance,
		Details:    fmt.Sprintf("model:%s threshold:%.2f", result.Model, result.Threshold),
		LatencyMs:  time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist verification log", zap.Error(wrapped))
		return "", nil, wrapped
	}

	if err := uc.cacheCheck(ctx, requestID, log); err != nil {
		opLogger.Error("failed to cache verification result", zap.Error(err))
		return "", nil, err
	}

	opLogger.Info("verification completed",
		zap.Bool("verified", result.Verified),
		zap.Float64("distance", result.Distance),
	)
	return requestID, result, nil
}

// GetResult retrieves a past check outcome, cache first with persistence
// fallback.
func (uc *ChecksUseCase) GetResult(ctx context.Context, requestID string) (*repository.CheckLog, error) {
	key := cacheKey(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", key); err == nil {
		var payload cachedCheck
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else {
			log := &repository.CheckLog{
				RequestID:  requestID,
				Kind:       payload.Kind,
				Success:    payload.Success,
				Confidence: payload.Confidence,
				Distance:   payload.Distance,
				FaceCount:  payload.FaceCount,
				Details:    payload.Details,
				CreatedAt:  payload.CreatedAt,
			}
			if payload.RequestID != "" {
				log.RequestID = payload.RequestID
			}
			return log, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestID(ctx, requestID)
}

func (uc *ChecksUseCase) cacheCheck(ctx context.Context, requestID string, log *repository.CheckLog) error {
	payload := cachedCheck{
		RequestID:  log.RequestID,
		Kind:       log.Kind,
		Success:    log.Success,
		Confidence: log.Confidence,
		Distance:   log.Distance,
		FaceCount:  log.FaceCount,
		Details:    log.Details,
		CreatedAt:  log.CreatedAt,
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return logging.NewOperationError("usecase.serialize_check", requestID, err)
	}
	return uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey(requestID), string(serialized), uc.cacheTTL)
	})
}
