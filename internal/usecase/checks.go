// Package usecase orchestrates the face check flows: temp file lifecycle,
// engine invocation, result caching, and audit persistence.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/kyc-ml/internal/faceengine"
	"github.com/example/kyc-ml/internal/logging"
	"github.com/example/kyc-ml/internal/repository"
	"github.com/example/kyc-ml/internal/vision"
)

// CheckRepository defines the persistence operations needed by the checks.
type CheckRepository interface {
	SaveLog(ctx context.Context, log *repository.CheckLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.CheckLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, []repository.KindCount, error)
}

// ChecksUseCase encapsulates the business logic for all three check flows.
type ChecksUseCase struct {
	repo           CheckRepository
	cache          Cache
	engine         faceengine.Engine
	detector       vision.Detector
	logger         *zap.Logger
	blurThreshold  float64
	cacheTTL       time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Option tunes a ChecksUseCase beyond its defaults.
type Option func(*ChecksUseCase)

// WithBlurThreshold overrides the liveness blur threshold.
func WithBlurThreshold(threshold float64) Option {
	return func(uc *ChecksUseCase) { uc.blurThreshold = threshold }
}

// WithCacheTTL overrides how long check results stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(uc *ChecksUseCase) { uc.cacheTTL = ttl }
}

// NewChecksUseCase constructs a use case with default retry settings.
func NewChecksUseCase(repo CheckRepository, cache Cache, engine faceengine.Engine, detector vision.Detector, logger *zap.Logger, opts ...Option) *ChecksUseCase {
	uc := &ChecksUseCase{
		repo:           repo,
		cache:          cache,
		engine:         engine,
		detector:       detector,
		logger:         logger.Named("checks_usecase"),
		blurThreshold:  100.0,
		cacheTTL:       5 * time.Minute,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// spillTempImage writes an upload to a scratch file that lives only for the
// duration of one request. Both native libraries consume file paths.
func (uc *ChecksUseCase) spillTempImage(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "kyc-upload-*.img")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	cleanup := func() {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			uc.logger.Warn("failed to remove temp file", zap.String("path", name), zap.Error(err))
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return name, cleanup, nil
}

func (uc *ChecksUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *ChecksUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	var miss bool
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if errors.Is(err, redis.Nil) {
			// A plain miss is an expected outcome, not a failure to retry
			// or log.
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	if miss {
		return "", redis.Nil
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
