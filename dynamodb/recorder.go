// Package dynamodb records migration run results in a DynamoDB table, one
// item per migrated table keyed by run ID and table name.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"catmigrate/internal"
	"catmigrate/migrate"
)

// maxBatchWrite is the BatchWriteItem request limit.
const maxBatchWrite = 25

type Config struct {
	Region    string `json:"region" yaml:"region"`
	TableName string `json:"table_name" yaml:"table_name"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"` // Optional for local DynamoDB
}

// API is the part of the DynamoDB client the recorder uses.
type API interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// RunRecord is one finished migration run.
type RunRecord struct {
	ID        string
	Source    string
	Target    string
	StartedAt time.Time
	Results   []migrate.Result
}

// TableRecord is the stored outcome of one table in a run.
type TableRecord struct {
	RunID    string
	Table    string
	State    string
	FailedIn string
	Rows     int64
	Batches  int
	Error    string
	Duration time.Duration
}

type Recorder struct {
	Config Config
	client API

	maxRetries int
	backoff    time.Duration
}

func NewRecorder(ctx context.Context, cfg Config) (*Recorder, error) {
	if cfg.TableName == "" {
		return nil, errors.New("report table name is required")
	}
	client, err := createClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
	}
	return NewRecorderWithClient(cfg, client), nil
}

func NewRecorderWithClient(cfg Config, client API) *Recorder {
	return &Recorder{
		Config:     cfg,
		client:     client,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

func createClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// EnsureTable creates the report table if it does not exist and waits for it
// to become active.
func (r *Recorder) EnsureTable(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.Config.TableName),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe report table: %w", err)
	}

	internal.Logger.Info("Creating report table", "table", r.Config.TableName)
	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.Config.TableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("run_id"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("table_name"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("run_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("table_name"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create report table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(r.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.Config.TableName),
	}, 5*time.Minute)
}

// Record writes one item per table result of run.
func (r *Recorder) Record(ctx context.Context, run RunRecord) error {
	batch := make([]types.WriteRequest, 0, maxBatchWrite)
	for _, res := range run.Results {
		batch = append(batch, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: resultItem(run, res)},
		})
		if len(batch) == maxBatchWrite {
			if err := r.writeBatch(ctx, batch); err != nil {
				return err
			}
			batch = make([]types.WriteRequest, 0, maxBatchWrite)
		}
	}
	if len(batch) > 0 {
		if err := r.writeBatch(ctx, batch); err != nil {
			return err
		}
	}

	internal.Logger.Debug("Recorded run", "run", run.ID, "tables", len(run.Results), "table", r.Config.TableName)
	return nil
}

// writeBatch writes a batch of items with retry logic for unprocessed items
func (r *Recorder) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			r.Config.TableName: batch,
		},
	}

	backoff := r.backoff
	for retry := 0; retry < r.maxRetries; retry++ {
		result, err := r.client.BatchWriteItem(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}

		unprocessed := result.UnprocessedItems[r.Config.TableName]
		if len(unprocessed) == 0 {
			return nil
		}
		input.RequestItems[r.Config.TableName] = unprocessed

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("failed to write batch after %d retries", r.maxRetries)
}

// RunResults returns the stored table records of a run.
func (r *Recorder) RunResults(ctx context.Context, runID string) ([]TableRecord, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.Config.TableName),
		KeyConditionExpression: aws.String("run_id = :run"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":run": &types.AttributeValueMemberS{Value: runID},
		},
	})

	var records []TableRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
		}
		for _, item := range page.Items {
			records = append(records, parseItem(item))
		}
	}
	return records, nil
}

func resultItem(run RunRecord, res migrate.Result) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"run_id":      &types.AttributeValueMemberS{Value: run.ID},
		"table_name":  &types.AttributeValueMemberS{Value: res.Table},
		"state":       &types.AttributeValueMemberS{Value: string(res.State)},
		"rows":        &types.AttributeValueMemberN{Value: strconv.FormatInt(res.Rows, 10)},
		"batches":     &types.AttributeValueMemberN{Value: strconv.Itoa(res.Batches)},
		"duration_ms": &types.AttributeValueMemberN{Value: strconv.FormatInt(res.Duration.Milliseconds(), 10)},
		"started_at":  &types.AttributeValueMemberS{Value: res.StartedAt.UTC().Format(time.RFC3339)},
		"run_started": &types.AttributeValueMemberS{Value: run.StartedAt.UTC().Format(time.RFC3339)},
		"source":      &types.AttributeValueMemberS{Value: run.Source},
		"target":      &types.AttributeValueMemberS{Value: run.Target},
	}
	if res.Err != nil {
		item["failed_in"] = &types.AttributeValueMemberS{Value: string(res.FailedIn)}
		item["error"] = &types.AttributeValueMemberS{Value: res.Err.Error()}
	}
	return item
}

func parseItem(item map[string]types.AttributeValue) TableRecord {
	str := func(key string) string {
		if v, ok := item[key].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}
	num := func(key string) int64 {
		if v, ok := item[key].(*types.AttributeValueMemberN); ok {
			n, _ := strconv.ParseInt(v.Value, 10, 64)
			return n
		}
		return 0
	}

	return TableRecord{
		RunID:    str("run_id"),
		Table:    str("table_name"),
		State:    str("state"),
		FailedIn: str("failed_in"),
		Rows:     num("rows"),
		Batches:  int(num("batches")),
		Error:    str("error"),
		Duration: time.Duration(num("duration_ms")) * time.Millisecond,
	}
}
