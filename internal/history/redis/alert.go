package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// UpsertAlert stores or replaces an alert and maintains the per-dataset,
// global and open indexes.
func (s *Store) UpsertAlert(ctx context.Context, alert types.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("upsert alert: empty alert ID")
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	score := float64(alert.TriggeredAt.UnixMilli())
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.alertKey(alert.AlertID), data, 0)
	pipe.ZAdd(ctx, s.alertIndexKey(alert.Dataset), goredis.Z{Score: score, Member: alert.AlertID})
	pipe.ZAdd(ctx, s.alertGlobalKey(), goredis.Z{Score: score, Member: alert.AlertID})
	pipe.ZRemRangeByRank(ctx, s.alertIndexKey(alert.Dataset), 0, -(s.indexMax + 1))
	pipe.ZRemRangeByRank(ctx, s.alertGlobalKey(), 0, -(s.indexMax + 1))
	pipe.SAdd(ctx, s.datasetsKey(), alert.Dataset)
	if alert.Status == types.AlertResolved {
		pipe.SRem(ctx, s.openKey(alert.Dataset), alert.AlertID)
	} else {
		pipe.SAdd(ctx, s.openKey(alert.Dataset), alert.AlertID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return history.Unavailable("redis upsert alert", err)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *Store) GetAlert(ctx context.Context, alertID string) (*types.Alert, error) {
	data, err := s.client.Get(ctx, s.alertKey(alertID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("alert %q: %w", alertID, history.ErrNotFound)
	}
	if err != nil {
		return nil, history.Unavailable("redis get alert", err)
	}

	var a types.Alert
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshaling alert %q: %w", alertID, err)
	}
	return &a, nil
}

// ListOpenAlerts returns the dataset's non-RESOLVED alerts, newest first.
func (s *Store) ListOpenAlerts(ctx context.Context, dataset string) ([]types.Alert, error) {
	ids, err := s.client.SMembers(ctx, s.openKey(dataset)).Result()
	if err != nil {
		return nil, history.Unavailable("redis list open alerts", err)
	}

	alerts := s.fetchAlerts(ctx, ids)
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})
	return alerts, nil
}

// ListAlerts returns recent alerts for a dataset, newest first.
func (s *Store) ListAlerts(ctx context.Context, dataset string, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.ZRangeArgs(ctx, goredis.ZRangeArgs{
		Key:   s.alertIndexKey(dataset),
		Start: 0,
		Stop:  int64(limit - 1),
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, history.Unavailable("redis list alerts", err)
	}
	return s.fetchAlerts(ctx, ids), nil
}

// ListAllAlerts returns recent alerts across all datasets, newest first.
func (s *Store) ListAllAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.ZRangeArgs(ctx, goredis.ZRangeArgs{
		Key:   s.alertGlobalKey(),
		Start: 0,
		Stop:  int64(limit - 1),
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, history.Unavailable("redis list all alerts", err)
	}
	return s.fetchAlerts(ctx, ids), nil
}

func (s *Store) fetchAlerts(ctx context.Context, ids []string) []types.Alert {
	var alerts []types.Alert
	for _, id := range ids {
		a, err := s.GetAlert(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable alert", "alertID", id, "error", err)
			continue
		}
		alerts = append(alerts, *a)
	}
	return alerts
}

// PruneBefore removes metric snapshots and runs scored before cutoff and
// deletes RESOLVED alerts resolved before it.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	datasets, err := s.ListDatasets(ctx)
	if err != nil {
		return 0, err
	}

	max := fmt.Sprintf("(%d", cutoff.UnixMilli())
	removed := 0
	for _, ds := range datasets {
		for _, key := range []string{s.metricsKey(ds), s.runsKey(ds)} {
			n, err := s.client.ZRemRangeByScore(ctx, key, "-inf", max).Result()
			if err != nil {
				return removed, history.Unavailable("redis prune series", err)
			}
			removed += int(n)
		}

		n, err := s.pruneAlerts(ctx, ds, cutoff, max)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *Store) pruneAlerts(ctx context.Context, dataset string, cutoff time.Time, max string) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.alertIndexKey(dataset), &goredis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, history.Unavailable("redis prune alerts", err)
	}

	removed := 0
	for _, id := range ids {
		a, err := s.GetAlert(ctx, id)
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				// Value expired underneath the index entry; drop the dangling reference.
				s.client.ZRem(ctx, s.alertIndexKey(dataset), id)
				s.client.ZRem(ctx, s.alertGlobalKey(), id)
				continue
			}
			s.logger.Warn("skipping unreadable alert during prune", "alertID", id, "error", err)
			continue
		}
		if a.Status != types.AlertResolved || a.ResolvedAt == nil || !a.ResolvedAt.Before(cutoff) {
			continue
		}

		pipe := s.client.Pipeline()
		pipe.Del(ctx, s.alertKey(id))
		pipe.ZRem(ctx, s.alertIndexKey(dataset), id)
		pipe.ZRem(ctx, s.alertGlobalKey(), id)
		pipe.SRem(ctx, s.openKey(dataset), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, history.Unavailable("redis prune alert", err)
		}
		removed++
	}
	return removed, nil
}
