package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// mockDDB is a minimal mock of the DDBAPI interface for unit testing.
type mockDDB struct {
	putItemFn       func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFn       func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	queryFn         func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	deleteItemFn    func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	describeTableFn func(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	createTableFn   func(ctx context.Context, input *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	updateTTLFn     func(ctx context.Context, input *dynamodb.UpdateTimeToLiveInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
	deleteTableFn   func(ctx context.Context, input *dynamodb.DeleteTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

func (m *mockDDB) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFn != nil {
		return m.putItemFn(ctx, input, opts...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDB) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, input, opts...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDDB) Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, input, opts...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDDB) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, input, opts...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDDB) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFn != nil {
		return m.describeTableFn(ctx, input, opts...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockDDB) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if m.createTableFn != nil {
		return m.createTableFn(ctx, input, opts...)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

func (m *mockDDB) UpdateTimeToLive(ctx context.Context, input *dynamodb.UpdateTimeToLiveInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	if m.updateTTLFn != nil {
		return m.updateTTLFn(ctx, input, opts...)
	}
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func (m *mockDDB) DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if m.deleteTableFn != nil {
		return m.deleteTableFn(ctx, input, opts...)
	}
	return &dynamodb.DeleteTableOutput{}, nil
}

func newTestStore(mock *mockDDB) *Store {
	return &Store{
		client:    mock,
		tableName: "test-table",
		logger:    slog.Default(),
	}
}

// ---------------------------------------------------------------------------
// Metrics marshaling tests
// ---------------------------------------------------------------------------

func TestAppendMetrics_MarshaledData(t *testing.T) {
	var puts []*dynamodb.PutItemInput
	mock := &mockDDB{
		putItemFn: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			puts = append(puts, input)
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	s := newTestStore(mock)

	m := types.QualityMetrics{
		Dataset:      "orders",
		MeasuredAt:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Completeness: 0.98,
		Score:        0.95,
	}
	if err := s.AppendMetrics(context.Background(), m); err != nil {
		t.Fatalf("AppendMetrics: %v", err)
	}

	// First PutItem is the snapshot, second the dataset marker.
	if len(puts) != 2 {
		t.Fatalf("expected 2 PutItem calls (snapshot + marker), got %d", len(puts))
	}
	if *puts[0].TableName != "test-table" {
		t.Errorf("table = %q, want %q", *puts[0].TableName, "test-table")
	}

	pk := puts[0].Item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	if pk != "DATASET#orders" {
		t.Errorf("PK = %q, want %q", pk, "DATASET#orders")
	}
	sk := puts[0].Item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	if len(sk) < 7 || sk[:7] != "METRIC#" {
		t.Errorf("SK = %q, want prefix %q", sk, "METRIC#")
	}

	dataStr := puts[0].Item["data"].(*ddbtypes.AttributeValueMemberS).Value
	var roundTrip types.QualityMetrics
	if err := json.Unmarshal([]byte(dataStr), &roundTrip); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if roundTrip.Completeness != 0.98 {
		t.Errorf("completeness = %v, want 0.98", roundTrip.Completeness)
	}

	// No TTL configured, so no ttl attribute.
	if _, ok := puts[0].Item["ttl"]; ok {
		t.Error("expected no ttl attribute when retention TTL is 0")
	}

	// Marker item registers the dataset on the GSI.
	gsi1pk := puts[1].Item["GSI1PK"].(*ddbtypes.AttributeValueMemberS).Value
	if gsi1pk != "TYPE#dataset" {
		t.Errorf("marker GSI1PK = %q, want %q", gsi1pk, "TYPE#dataset")
	}
}

func TestAppendMetrics_SetsTTL(t *testing.T) {
	var firstPut *dynamodb.PutItemInput
	calls := 0
	mock := &mockDDB{
		putItemFn: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			if calls == 0 {
				firstPut = input
			}
			calls++
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	s := newTestStore(mock)
	s.SetRetentionTTL(30 * 24 * time.Hour)

	m := types.QualityMetrics{Dataset: "orders", MeasuredAt: time.Now(), Score: 0.9}
	if err := s.AppendMetrics(context.Background(), m); err != nil {
		t.Fatalf("AppendMetrics: %v", err)
	}

	ttlAttr, ok := firstPut.Item["ttl"]
	if !ok {
		t.Fatal("expected ttl attribute on snapshot item")
	}
	ttlVal := ttlAttr.(*ddbtypes.AttributeValueMemberN).Value
	if ttlVal == "" || ttlVal == "0" {
		t.Error("expected non-zero TTL value")
	}
}

func TestListMetrics_UnmarshalsItems(t *testing.T) {
	m1 := types.QualityMetrics{Dataset: "orders", Score: 0.95}
	m2 := types.QualityMetrics{Dataset: "orders", Score: 0.90}
	data1, _ := json.Marshal(m1)
	data2, _ := json.Marshal(m2)

	mock := &mockDDB{
		queryFn: func(_ context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if *input.ScanIndexForward {
				t.Error("expected ScanIndexForward=false for newest-first listing")
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]ddbtypes.AttributeValue{
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(data1)}},
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(data2)}},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	metrics, err := s.ListMetrics(context.Background(), "orders", 10)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("len(metrics) = %d, want 2", len(metrics))
	}
	if metrics[0].Score != 0.95 {
		t.Errorf("metrics[0].Score = %v, want 0.95", metrics[0].Score)
	}
}

func TestListMetrics_SkipsCorruptData(t *testing.T) {
	good := types.QualityMetrics{Dataset: "orders", Score: 0.9}
	goodData, _ := json.Marshal(good)

	mock := &mockDDB{
		queryFn: func(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]ddbtypes.AttributeValue{
					{"data": &ddbtypes.AttributeValueMemberS{Value: "not-json{"}},
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(goodData)}},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	metrics, err := s.ListMetrics(context.Background(), "orders", 10)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("len(metrics) = %d, want 1 (corrupt item should be skipped)", len(metrics))
	}
}

// ---------------------------------------------------------------------------
// Run marshaling tests
// ---------------------------------------------------------------------------

func TestRecordRun_MarshaledData(t *testing.T) {
	var puts []*dynamodb.PutItemInput
	mock := &mockDDB{
		putItemFn: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			puts = append(puts, input)
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	s := newTestStore(mock)

	result := types.ValidationResult{
		RunID:     "run-1",
		Dataset:   "orders",
		Timestamp: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Valid:     true,
	}
	if err := s.RecordRun(context.Background(), result); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	if len(puts) != 2 {
		t.Fatalf("expected 2 PutItem calls (run + marker), got %d", len(puts))
	}
	sk := puts[0].Item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	if len(sk) < 4 || sk[:4] != "RUN#" {
		t.Errorf("SK = %q, want prefix %q", sk, "RUN#")
	}
	if sk[len(sk)-6:] != "#run-1" {
		t.Errorf("SK = %q, want suffix %q", sk, "#run-1")
	}
}

// ---------------------------------------------------------------------------
// Alert tests
// ---------------------------------------------------------------------------

func TestUpsertAlert_DualWrite(t *testing.T) {
	var puts []*dynamodb.PutItemInput
	mock := &mockDDB{
		putItemFn: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			puts = append(puts, input)
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	s := newTestStore(mock)

	alert := types.Alert{
		AlertID:     "alert-1",
		Dataset:     "orders",
		Metric:      types.MetricCompleteness,
		Condition:   "completeness < 0.95",
		Severity:    types.SeverityHigh,
		Status:      types.AlertActive,
		TriggeredAt: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	if err := s.UpsertAlert(context.Background(), alert); err != nil {
		t.Fatalf("UpsertAlert: %v", err)
	}

	// Truth record, dataset index copy, dataset marker.
	if len(puts) != 3 {
		t.Fatalf("expected 3 PutItem calls, got %d", len(puts))
	}

	truthPK := puts[0].Item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	truthSK := puts[0].Item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	if truthPK != "ALERT#alert-1" {
		t.Errorf("truth PK = %q, want %q", truthPK, "ALERT#alert-1")
	}
	if truthSK != "ALERT" {
		t.Errorf("truth SK = %q, want %q", truthSK, "ALERT")
	}
	gsi1pk := puts[0].Item["GSI1PK"].(*ddbtypes.AttributeValueMemberS).Value
	if gsi1pk != "TYPE#alert" {
		t.Errorf("GSI1PK = %q, want %q", gsi1pk, "TYPE#alert")
	}

	idxPK := puts[1].Item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	idxSK := puts[1].Item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	if idxPK != "DATASET#orders" {
		t.Errorf("index PK = %q, want %q", idxPK, "DATASET#orders")
	}
	if len(idxSK) < 9 || idxSK[:9] != "ALERTIDX#" {
		t.Errorf("index SK = %q, want prefix %q", idxSK, "ALERTIDX#")
	}

	// Both copies carry the same payload.
	if puts[0].Item["data"].(*ddbtypes.AttributeValueMemberS).Value !=
		puts[1].Item["data"].(*ddbtypes.AttributeValueMemberS).Value {
		t.Error("truth and index copies should carry identical data")
	}
}

func TestUpsertAlert_RequiresID(t *testing.T) {
	s := newTestStore(&mockDDB{})
	err := s.UpsertAlert(context.Background(), types.Alert{Dataset: "orders"})
	if err == nil {
		t.Fatal("expected error for empty alert ID")
	}
}

func TestGetAlert_RoundTrip(t *testing.T) {
	alert := types.Alert{AlertID: "alert-1", Dataset: "orders", Status: types.AlertActive}
	data, _ := json.Marshal(alert)

	mock := &mockDDB{
		getItemFn: func(_ context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			pk := input.Key["PK"].(*ddbtypes.AttributeValueMemberS).Value
			if pk != "ALERT#alert-1" {
				t.Errorf("PK = %q, want %q", pk, "ALERT#alert-1")
			}
			return &dynamodb.GetItemOutput{
				Item: map[string]ddbtypes.AttributeValue{
					"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	got, err := s.GetAlert(context.Background(), "alert-1")
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got.Dataset != "orders" {
		t.Errorf("dataset = %q, want %q", got.Dataset, "orders")
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	mock := &mockDDB{
		getItemFn: func(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: nil}, nil
		},
	}
	s := newTestStore(mock)

	_, err := s.GetAlert(context.Background(), "nonexistent")
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestListOpenAlerts_FiltersResolved(t *testing.T) {
	active := types.Alert{AlertID: "a", Dataset: "orders", Status: types.AlertActive}
	resolved := types.Alert{AlertID: "b", Dataset: "orders", Status: types.AlertResolved}
	activeData, _ := json.Marshal(active)
	resolvedData, _ := json.Marshal(resolved)

	mock := &mockDDB{
		queryFn: func(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]ddbtypes.AttributeValue{
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(activeData)}},
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(resolvedData)}},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	open, err := s.ListOpenAlerts(context.Background(), "orders")
	if err != nil {
		t.Fatalf("ListOpenAlerts: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("len(open) = %d, want 1", len(open))
	}
	if open[0].AlertID != "a" {
		t.Errorf("open[0].AlertID = %q, want %q", open[0].AlertID, "a")
	}
}

// ---------------------------------------------------------------------------
// Ping / ensureTable tests
// ---------------------------------------------------------------------------

func TestPing_WrapsUnavailable(t *testing.T) {
	mock := &mockDDB{
		describeTableFn: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, fmt.Errorf("table not found")
		},
	}
	s := newTestStore(mock)

	err := s.Ping(context.Background())
	if !errors.Is(err, history.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got: %v", err)
	}
}

func TestEnsureTable_AlreadyExists(t *testing.T) {
	mock := &mockDDB{
		createTableFn: func(_ context.Context, _ *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			return nil, &ddbtypes.ResourceInUseException{Message: strPtr("already exists")}
		},
	}
	s := newTestStore(mock)

	if err := s.ensureTable(context.Background()); err != nil {
		t.Fatalf("ensureTable should ignore ResourceInUseException, got: %v", err)
	}
}

func strPtr(s string) *string { return &s }
