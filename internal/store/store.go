// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/vyrodovalexey/omikuji-api/internal/model"
)

// Store error codes that carry meaning for callers.
const (
	CodeResourceNotFound = "ResourceNotFoundException"
	CodeInternalServer   = "InternalServerError"
)

// Store errors.
var (
	ErrEmptyTable       = errors.New("table name cannot be empty")
	ErrUnprocessedItems = errors.New("batch write left unprocessed items")
)

// Store defines the key-value operations used by the draw service. Every
// store-reported failure is translated into model.ClientError or
// model.ServerError; other failures are returned wrapped.
type Store interface {
	// GetItem fetches one record by its full key. A missing record or table
	// yields a nil record and no error.
	GetItem(ctx context.Context, table string, key model.Key) (model.Record, error)

	// QueryItems returns attr of every record sharing the partition key,
	// consuming all pages. A missing table yields an empty slice.
	QueryItems(ctx context.Context, table, keyName, keyValue, attr string) ([]any, error)

	// ScanItems returns attr of every record in the table, consuming all
	// pages. A missing table yields an empty slice.
	ScanItems(ctx context.Context, table, attr string) ([]any, error)

	// PutItems writes records as one logical batch.
	PutItems(ctx context.Context, table string, records []model.Record) error

	// DeleteItems deletes keys as one logical batch. An empty list is a no-op.
	DeleteItems(ctx context.Context, table string, keys []model.Key) error
}

// classify maps a store-reported failure onto the error taxonomy. absent is
// true when the failure means "resource not found" and allowAbsent is set.
// Failures that are not store API errors are returned unchanged.
func classify(input string, err error, allowAbsent bool) (absent bool, out error) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false, err
	}

	switch apiErr.ErrorCode() {
	case CodeInternalServer:
		return false, &model.ServerError{Input: input, Message: apiErr.ErrorMessage(), Err: err}
	case CodeResourceNotFound:
		if allowAbsent {
			return true, nil
		}
	}

	return false, &model.ClientError{Input: input, Message: apiErr.ErrorMessage(), Err: err}
}

// describe renders a key or key list for error echoes.
func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
