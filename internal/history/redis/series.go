package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// AppendMetrics appends one metric snapshot to the dataset's time series and
// trims the series to the configured cap.
func (s *Store) AppendMetrics(ctx context.Context, m types.QualityMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.metricsKey(m.Dataset), goredis.Z{
		Score:  float64(m.MeasuredAt.UnixMilli()),
		Member: string(data),
	})
	pipe.ZRemRangeByRank(ctx, s.metricsKey(m.Dataset), 0, -(s.indexMax + 1))
	pipe.SAdd(ctx, s.datasetsKey(), m.Dataset)
	if _, err := pipe.Exec(ctx); err != nil {
		return history.Unavailable("redis append metrics", err)
	}
	return nil
}

// ListMetrics returns up to limit snapshots for the dataset, newest first.
func (s *Store) ListMetrics(ctx context.Context, dataset string, limit int) ([]types.QualityMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	members, err := s.client.ZRangeArgs(ctx, goredis.ZRangeArgs{
		Key:   s.metricsKey(dataset),
		Start: 0,
		Stop:  int64(limit - 1),
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, history.Unavailable("redis list metrics", err)
	}

	var out []types.QualityMetrics
	for _, m := range members {
		var snap types.QualityMetrics
		if err := json.Unmarshal([]byte(m), &snap); err != nil {
			s.logger.Warn("skipping corrupt metric snapshot", "dataset", dataset, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// RecordRun appends one validation run to the dataset's run series.
func (s *Store) RecordRun(ctx context.Context, result types.ValidationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.runsKey(result.Dataset), goredis.Z{
		Score:  float64(result.Timestamp.UnixMilli()),
		Member: string(data),
	})
	pipe.ZRemRangeByRank(ctx, s.runsKey(result.Dataset), 0, -(s.indexMax + 1))
	pipe.SAdd(ctx, s.datasetsKey(), result.Dataset)
	if _, err := pipe.Exec(ctx); err != nil {
		return history.Unavailable("redis record run", err)
	}
	return nil
}

// ListRuns returns up to limit validation runs for the dataset, newest first.
func (s *Store) ListRuns(ctx context.Context, dataset string, limit int) ([]types.ValidationResult, error) {
	if limit <= 0 {
		limit = 20
	}
	members, err := s.client.ZRangeArgs(ctx, goredis.ZRangeArgs{
		Key:   s.runsKey(dataset),
		Start: 0,
		Stop:  int64(limit - 1),
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, history.Unavailable("redis list runs", err)
	}

	var out []types.ValidationResult
	for _, m := range members {
		var run types.ValidationResult
		if err := json.Unmarshal([]byte(m), &run); err != nil {
			s.logger.Warn("skipping corrupt run record", "dataset", dataset, "error", err)
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

// ListDatasets returns every dataset with recorded history, sorted.
func (s *Store) ListDatasets(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.datasetsKey()).Result()
	if err != nil {
		return nil, history.Unavailable("redis list datasets", err)
	}
	sort.Strings(names)
	return names, nil
}
