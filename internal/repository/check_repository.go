package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/kyc-ml/internal/logging"
)

// Check kinds persisted in the audit log.
const (
	KindVerification = "verification"
	KindExtraction   = "extraction"
	KindLiveness     = "liveness"
)

// CheckLog represents a persisted face check outcome.
type CheckLog struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Kind       string    `gorm:"column:kind;size:16;index"`
	Success    bool      `gorm:"column:success"`
	Confidence float64   `gorm:"column:confidence"`
	Distance   float64   `gorm:"column:distance"`
	FaceCount  int       `gorm:"column:face_count"`
	Details    string    `gorm:"column:details;type:text"`
	LatencyMs  int64     `gorm:"column:latency_ms"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (CheckLog) TableName() string {
	return "check_logs"
}

// MetricsAggregation holds raw aggregates over the audit log.
type MetricsAggregation struct {
	TotalCount        int64
	SuccessCount      int64
	AverageConfidence float64
	AverageLatencyMs  float64
}

// KindCount is a per-kind row count.
type KindCount struct {
	Kind  string
	Count int64
}

// CheckRepository provides persistence for check logs.
type CheckRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewCheckRepository creates a repository with default retry settings.
func NewCheckRepository(db *gorm.DB, logger *zap.Logger) *CheckRepository {
	return &CheckRepository{
		db:             db,
		logger:         logger.Named("check_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *CheckRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&CheckLog{})
}

// SaveLog persists a check log entry, retrying transient database errors.
func (r *CheckRepository) SaveLog(ctx context.Context, log *CheckLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves a check log by its request identifier.
func (r *CheckRepository) FindByRequestID(ctx context.Context, requestID string) (*CheckLog, error) {
	var log CheckLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics computes summary aggregates over all persisted checks.
func (r *CheckRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, []KindCount, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).Model(&CheckLog{}).
			Select("COUNT(*) AS total_count, " +
				"COUNT(*) FILTER (WHERE success) AS success_count, " +
				"COALESCE(AVG(confidence), 0) AS average_confidence, " +
				"COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
			Scan(&agg).Error
	})
	if err != nil {
		return nil, nil, err
	}

	var kinds []KindCount
	err = r.executeWithRetry(ctx, "repository.count_by_kind", "", func() error {
		return r.db.WithContext(ctx).Model(&CheckLog{}).
			Select("kind, COUNT(*) AS count").
			Group("kind").
			Scan(&kinds).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return &agg, kinds, nil
}

func (r *CheckRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff

	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
