// Package dynamo implements the history.Store interface on AWS DynamoDB using
// a single table with a PK/SK key schema and one GSI for global listings.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// Compile-time interface satisfaction check.
var _ history.Store = (*Store)(nil)

// DDBAPI is the subset of the DynamoDB client the store uses. A narrow
// interface keeps unit tests free of real AWS clients.
type DDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// Store implements history.Store backed by DynamoDB.
type Store struct {
	client       DDBAPI
	tableName    string
	logger       *slog.Logger
	retentionTTL time.Duration
	createTable  bool
}

// New creates a DynamoDB history store from configuration.
func New(cfg *types.DynamoConfig) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: static credentials and a custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Store{
		client:      dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName:   cfg.TableName,
		logger:      slog.Default(),
		createTable: cfg.CreateTable,
	}, nil
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client DDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetRetentionTTL enables per-item TTL on series records so DynamoDB expires
// them alongside the prune sweep.
func (s *Store) SetRetentionTTL(d time.Duration) {
	s.retentionTTL = d
}

// Start optionally creates the table and verifies connectivity.
func (s *Store) Start(ctx context.Context) error {
	if s.createTable {
		if err := s.ensureTable(ctx); err != nil {
			return err
		}
	}
	return s.Ping(ctx)
}

// Stop is a no-op for DynamoDB (no persistent connections to close).
func (s *Store) Stop(_ context.Context) error {
	return nil
}

// Ping checks connectivity by describing the table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &s.tableName,
	})
	if err != nil {
		return history.Unavailable("dynamodb ping", err)
	}
	return nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &s.tableName,
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: ddbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1SK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []ddbtypes.GlobalSecondaryIndex{
			{
				IndexName: aws.String("GSI1"),
				KeySchema: []ddbtypes.KeySchemaElement{
					{AttributeName: aws.String("GSI1PK"), KeyType: ddbtypes.KeyTypeHash},
					{AttributeName: aws.String("GSI1SK"), KeyType: ddbtypes.KeyTypeRange},
				},
				Projection: &ddbtypes.Projection{ProjectionType: ddbtypes.ProjectionTypeAll},
				ProvisionedThroughput: &ddbtypes.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(5),
					WriteCapacityUnits: aws.Int64(5),
				},
			},
		},
		ProvisionedThroughput: &ddbtypes.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		var riue *ddbtypes.ResourceInUseException
		if errors.As(err, &riue) {
			return nil // table already exists
		}
		return fmt.Errorf("creating table: %w", err)
	}

	// Enable TTL on the "ttl" attribute.
	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: &s.tableName,
		TimeToLiveSpecification: &ddbtypes.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String("ttl"),
		},
	})
	if err != nil {
		s.logger.Warn("failed to enable TTL (may already be enabled)", "error", err)
	}

	return nil
}
