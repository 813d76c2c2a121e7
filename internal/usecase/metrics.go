package usecase

import "context"

// MetricsSummary represents aggregated check insights.
type MetricsSummary struct {
	TotalChecks       int64            `json:"total_checks"`
	SuccessfulChecks  int64            `json:"successful_checks"`
	SuccessRate       float64          `json:"success_rate"`
	AverageConfidence float64          `json:"average_confidence"`
	AverageLatencyMs  float64          `json:"average_latency_ms"`
	ChecksByKind      map[string]int64 `json:"checks_by_kind"`
}

// GetMetricsSummary aggregates check metrics from persisted logs.
func (uc *ChecksUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, kinds, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalChecks:       aggregation.TotalCount,
		SuccessfulChecks:  aggregation.SuccessCount,
		AverageConfidence: aggregation.AverageConfidence,
		AverageLatencyMs:  aggregation.AverageLatencyMs,
		ChecksByKind:      make(map[string]int64, len(kinds)),
	}
	for _, kc := range kinds {
		summary.ChecksByKind[kc.Kind] = kc.Count
	}
	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
