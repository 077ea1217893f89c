package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// AppendMetrics writes one metric snapshot plus the dataset marker record.
func (s *Store) AppendMetrics(ctx context.Context, m types.QualityMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}

	item := map[string]ddbtypes.AttributeValue{
		"PK":   &ddbtypes.AttributeValueMemberS{Value: datasetPK(m.Dataset)},
		"SK":   &ddbtypes.AttributeValueMemberS{Value: metricSK(m.MeasuredAt)},
		"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
	}
	if s.retentionTTL > 0 {
		item["ttl"] = &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlEpoch(s.retentionTTL))}
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return history.Unavailable("dynamodb append metrics", err)
	}
	return s.putDatasetMarker(ctx, m.Dataset)
}

// ListMetrics returns up to limit snapshots for the dataset, newest first.
func (s *Store) ListMetrics(ctx context.Context, dataset string, limit int) ([]types.QualityMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: datasetPK(dataset)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixMetric},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, history.Unavailable("dynamodb list metrics", err)
	}

	var metrics []types.QualityMetrics
	for _, item := range out.Items {
		data, err := attributeStr(item, "data")
		if err != nil {
			s.logger.Warn("skipping corrupt metric item", "error", err)
			continue
		}
		var m types.QualityMetrics
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			s.logger.Warn("skipping corrupt metric data", "error", err)
			continue
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// RecordRun writes one validation run plus the dataset marker record.
func (s *Store) RecordRun(ctx context.Context, result types.ValidationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	item := map[string]ddbtypes.AttributeValue{
		"PK":   &ddbtypes.AttributeValueMemberS{Value: datasetPK(result.Dataset)},
		"SK":   &ddbtypes.AttributeValueMemberS{Value: runSK(result.Timestamp, result.RunID)},
		"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
	}
	if s.retentionTTL > 0 {
		item["ttl"] = &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlEpoch(s.retentionTTL))}
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return history.Unavailable("dynamodb record run", err)
	}
	return s.putDatasetMarker(ctx, result.Dataset)
}

// ListRuns returns up to limit validation runs for the dataset, newest first.
func (s *Store) ListRuns(ctx context.Context, dataset string, limit int) ([]types.ValidationResult, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: datasetPK(dataset)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixRun},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, history.Unavailable("dynamodb list runs", err)
	}

	var runs []types.ValidationResult
	for _, item := range out.Items {
		data, err := attributeStr(item, "data")
		if err != nil {
			s.logger.Warn("skipping corrupt run item", "error", err)
			continue
		}
		var r types.ValidationResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			s.logger.Warn("skipping corrupt run data", "error", err)
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// ListDatasets returns every dataset with recorded history, sorted.
func (s *Store) ListDatasets(ctx context.Context) ([]string, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: prefixType + "dataset"},
		},
	})
	if err != nil {
		return nil, history.Unavailable("dynamodb list datasets", err)
	}

	var datasets []string
	for _, item := range out.Items {
		ds, err := attributeStr(item, "dataset")
		if err != nil {
			s.logger.Warn("skipping corrupt dataset marker", "error", err)
			continue
		}
		datasets = append(datasets, ds)
	}
	sort.Strings(datasets)
	return datasets, nil
}

// PruneBefore removes series records older than cutoff and RESOLVED alerts
// resolved before it.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	datasets, err := s.ListDatasets(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ds := range datasets {
		for _, prefix := range []string{prefixMetric, prefixRun} {
			n, err := s.pruneSeries(ctx, ds, prefix, cutoff)
			if err != nil {
				return removed, err
			}
			removed += n
		}
		n, err := s.pruneAlerts(ctx, ds, cutoff)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *Store) pruneSeries(ctx context.Context, dataset, prefix string, cutoff time.Time) (int, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: datasetPK(dataset)},
			":lo": &ddbtypes.AttributeValueMemberS{Value: prefix},
			":hi": &ddbtypes.AttributeValueMemberS{Value: seriesUpperBound(prefix, cutoff)},
		},
	})
	if err != nil {
		return 0, history.Unavailable("dynamodb prune series", err)
	}

	removed := 0
	for _, item := range out.Items {
		sk, err := attributeStr(item, "SK")
		if err != nil {
			continue
		}
		if err := s.deleteItem(ctx, datasetPK(dataset), sk); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Store) putDatasetMarker(ctx context.Context, dataset string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":      &ddbtypes.AttributeValueMemberS{Value: datasetPK(dataset)},
			"SK":      &ddbtypes.AttributeValueMemberS{Value: skDataset},
			"GSI1PK":  &ddbtypes.AttributeValueMemberS{Value: prefixType + "dataset"},
			"GSI1SK":  &ddbtypes.AttributeValueMemberS{Value: dataset},
			"dataset": &ddbtypes.AttributeValueMemberS{Value: dataset},
		},
	})
	if err != nil {
		return history.Unavailable("dynamodb put dataset marker", err)
	}
	return nil
}

func (s *Store) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: pk},
			"SK": &ddbtypes.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return history.Unavailable("dynamodb delete item", err)
	}
	return nil
}

// attributeStr extracts a string attribute from a DynamoDB item.
func attributeStr(item map[string]ddbtypes.AttributeValue, key string) (string, error) {
	av, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	var s string
	if err := attributevalue.Unmarshal(av, &s); err != nil {
		return "", fmt.Errorf("unmarshaling %q: %w", key, err)
	}
	return s, nil
}
