package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vyrodovalexey/omikuji-api/internal/model"
)

const (
	// maxBatchSize is the BatchWriteItem request limit.
	maxBatchSize = 25

	// maxUnprocessedRounds bounds re-submission of unprocessed requests.
	maxUnprocessedRounds = 8
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoStore implements Store on top of Amazon DynamoDB.
type DynamoStore struct {
	client DynamoDBAPI
}

// NewDynamoStore creates a new DynamoStore around an existing client.
func NewDynamoStore(client DynamoDBAPI) *DynamoStore {
	return &DynamoStore{client: client}
}

// GetItem retrieves a record by its full key.
func (s *DynamoStore) GetItem(ctx context.Context, table string, key model.Key) (model.Record, error) {
	if table == "" {
		return nil, ErrEmptyTable
	}

	av, err := attributevalue.MarshalMap(toStoreValue(map[string]any(key)))
	if err != nil {
		return nil, fmt.Errorf("get item: marshal key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       av,
	})
	if err != nil {
		absent, cerr := classify(describe(key), err, true)
		if absent {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", cerr)
	}

	if out.Item == nil {
		return nil, nil
	}

	rec := model.Record{}
	if err := attributevalue.UnmarshalMapWithOptions(out.Item, &rec, useNumber); err != nil {
		return nil, fmt.Errorf("get item: unmarshal record: %w", err)
	}

	return rec, nil
}

// QueryItems returns attr across every record sharing the partition key.
func (s *DynamoStore) QueryItems(ctx context.Context, table, keyName, keyValue, attr string) ([]any, error) {
	if table == "" {
		return nil, ErrEmptyTable
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(keyName).Equal(expression.Value(keyValue))).
		WithProjection(expression.NamesList(expression.Name(attr))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("query items: build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	values := make([]any, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			absent, cerr := classify(attr, err, true)
			if absent {
				return make([]any, 0), nil
			}
			return nil, fmt.Errorf("query items: %w", cerr)
		}

		values, err = appendProjected(values, page.Items, attr)
		if err != nil {
			return nil, fmt.Errorf("query items: %w", err)
		}
	}

	return values, nil
}

// ScanItems returns attr across every record in the table.
func (s *DynamoStore) ScanItems(ctx context.Context, table, attr string) ([]any, error) {
	if table == "" {
		return nil, ErrEmptyTable
	}

	expr, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name(attr))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("scan items: build expression: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                aws.String(table),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})

	values := make([]any, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			absent, cerr := classify(attr, err, true)
			if absent {
				return make([]any, 0), nil
			}
			return nil, fmt.Errorf("scan items: %w", cerr)
		}

		values, err = appendProjected(values, page.Items, attr)
		if err != nil {
			return nil, fmt.Errorf("scan items: %w", err)
		}
	}

	return values, nil
}

// PutItems writes records in batches of at most 25.
func (s *DynamoStore) PutItems(ctx context.Context, table string, records []model.Record) error {
	if table == "" {
		return ErrEmptyTable
	}

	reqs := make([]types.WriteRequest, 0, len(records))
	for _, rec := range records {
		av, err := attributevalue.MarshalMap(toStoreValue(map[string]any(rec)))
		if err != nil {
			return fmt.Errorf("put items: marshal record: %w", err)
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	if err := s.batchWrite(ctx, table, reqs, func(start, end int) string {
		return describe(records[start:end])
	}); err != nil {
		return fmt.Errorf("put items: %w", err)
	}

	return nil
}

// DeleteItems deletes keys in batches of at most 25.
func (s *DynamoStore) DeleteItems(ctx context.Context, table string, keys []model.Key) error {
	if len(keys) == 0 {
		return nil
	}
	if table == "" {
		return ErrEmptyTable
	}

	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		av, err := attributevalue.MarshalMap(toStoreValue(map[string]any(key)))
		if err != nil {
			return fmt.Errorf("delete items: marshal key: %w", err)
		}
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: av}})
	}

	if err := s.batchWrite(ctx, table, reqs, func(start, end int) string {
		return describe(keys[start:end])
	}); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	return nil
}

// batchWrite sends reqs in chunks and re-submits whatever DynamoDB reports
// as unprocessed. The first failing chunk aborts the rest.
func (s *DynamoStore) batchWrite(
	ctx context.Context,
	table string,
	reqs []types.WriteRequest,
	input func(start, end int) string,
) error {
	for start := 0; start < len(reqs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(reqs))
		pending := map[string][]types.WriteRequest{table: reqs[start:end]}

		for round := 0; len(pending[table]) > 0; round++ {
			if round == maxUnprocessedRounds {
				return &model.ServerError{
					Input:   input(start, end),
					Message: "batch write left unprocessed items",
					Err:     ErrUnprocessedItems,
				}
			}

			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				_, cerr := classify(input(start, end), err, false)
				return cerr
			}
			pending = out.UnprocessedItems
		}
	}

	return nil
}

// appendProjected decodes attr from every item that carries it.
func appendProjected(values []any, items []map[string]types.AttributeValue, attr string) ([]any, error) {
	for _, item := range items {
		av, ok := item[attr]
		if !ok {
			continue
		}
		var v any
		if err := attributevalue.UnmarshalWithOptions(av, &v, useNumber); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", attr, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// useNumber keeps DynamoDB numbers as attributevalue.Number so no precision
// is lost before the response shaper sees them.
func useNumber(o *attributevalue.DecoderOptions) {
	o.UseNumber = true
}

// toStoreValue converts json.Number values so they are written as DynamoDB
// numbers instead of strings.
func toStoreValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		return attributevalue.Number(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toStoreValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toStoreValue(item)
		}
		return out
	default:
		return v
	}
}
