package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// UpsertAlert writes the alert truth record and its dataset index copy.
func (s *Store) UpsertAlert(ctx context.Context, alert types.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("alert ID must not be empty")
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":     &ddbtypes.AttributeValueMemberS{Value: alertPK(alert.AlertID)},
			"SK":     &ddbtypes.AttributeValueMemberS{Value: skAlertTruth},
			"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "alert"},
			"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: globalAlertSK(alert.TriggeredAt, alert.AlertID)},
			"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	}); err != nil {
		return history.Unavailable("dynamodb upsert alert", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":   &ddbtypes.AttributeValueMemberS{Value: datasetPK(alert.Dataset)},
			"SK":   &ddbtypes.AttributeValueMemberS{Value: alertIdxSK(alert.TriggeredAt, alert.AlertID)},
			"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	}); err != nil {
		return history.Unavailable("dynamodb upsert alert index", err)
	}
	return s.putDatasetMarker(ctx, alert.Dataset)
}

// GetAlert fetches one alert by ID.
func (s *Store) GetAlert(ctx context.Context, alertID string) (*types.Alert, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: alertPK(alertID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: skAlertTruth},
		},
	})
	if err != nil {
		return nil, history.Unavailable("dynamodb get alert", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("alert %s: %w", alertID, history.ErrNotFound)
	}

	data, err := attributeStr(out.Item, "data")
	if err != nil {
		return nil, fmt.Errorf("reading alert %s: %w", alertID, err)
	}
	var alert types.Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return nil, fmt.Errorf("unmarshaling alert %s: %w", alertID, err)
	}
	return &alert, nil
}

// ListOpenAlerts returns non-resolved alerts for the dataset, newest first.
func (s *Store) ListOpenAlerts(ctx context.Context, dataset string) ([]types.Alert, error) {
	all, err := s.ListAlerts(ctx, dataset, 0)
	if err != nil {
		return nil, err
	}
	var open []types.Alert
	for _, a := range all {
		if a.Status != types.AlertResolved {
			open = append(open, a)
		}
	}
	return open, nil
}

// ListAlerts returns up to limit alerts for the dataset, newest first.
func (s *Store) ListAlerts(ctx context.Context, dataset string, limit int) ([]types.Alert, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: datasetPK(dataset)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixAlertIdx},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, history.Unavailable("dynamodb list alerts", err)
	}
	return s.decodeAlerts(out.Items), nil
}

// ListAllAlerts returns up to limit alerts across every dataset, newest first.
func (s *Store) ListAllAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: prefixType + "alert"},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, history.Unavailable("dynamodb list all alerts", err)
	}

	alerts := s.decodeAlerts(out.Items)
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].TriggeredAt.Equal(alerts[j].TriggeredAt) {
			return alerts[i].AlertID > alerts[j].AlertID
		}
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})
	return alerts, nil
}

// pruneAlerts removes alerts for the dataset that resolved before cutoff,
// cleaning both the truth record and the index copy.
func (s *Store) pruneAlerts(ctx context.Context, dataset string, cutoff time.Time) (int, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: datasetPK(dataset)},
			":lo": &ddbtypes.AttributeValueMemberS{Value: prefixAlertIdx},
			":hi": &ddbtypes.AttributeValueMemberS{Value: seriesUpperBound(prefixAlertIdx, cutoff)},
		},
	})
	if err != nil {
		return 0, history.Unavailable("dynamodb prune alerts", err)
	}

	removed := 0
	for _, item := range out.Items {
		sk, err := attributeStr(item, "SK")
		if err != nil {
			continue
		}
		data, err := attributeStr(item, "data")
		if err != nil {
			continue
		}
		var idx types.Alert
		if err := json.Unmarshal([]byte(data), &idx); err != nil {
			s.logger.Warn("skipping corrupt alert index", "error", err)
			continue
		}

		alert, err := s.GetAlert(ctx, idx.AlertID)
		if errors.Is(err, history.ErrNotFound) {
			// Dangling index copy, remove it.
			if err := s.deleteItem(ctx, datasetPK(dataset), sk); err != nil {
				return removed, err
			}
			continue
		}
		if err != nil {
			return removed, err
		}
		if alert.Status != types.AlertResolved || alert.ResolvedAt == nil || !alert.ResolvedAt.Before(cutoff) {
			continue
		}

		if err := s.deleteItem(ctx, alertPK(alert.AlertID), skAlertTruth); err != nil {
			return removed, err
		}
		if err := s.deleteItem(ctx, datasetPK(dataset), sk); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Store) decodeAlerts(items []map[string]ddbtypes.AttributeValue) []types.Alert {
	var alerts []types.Alert
	for _, item := range items {
		data, err := attributeStr(item, "data")
		if err != nil {
			s.logger.Warn("skipping corrupt alert item", "error", err)
			continue
		}
		var a types.Alert
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			s.logger.Warn("skipping corrupt alert data", "error", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}
