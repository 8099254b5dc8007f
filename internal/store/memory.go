package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/smithy-go"

	"github.com/vyrodovalexey/omikuji-api/internal/model"
)

// Operation names a MemoryStore operation for failure injection.
type Operation string

// Memory store operations.
const (
	OpGet    Operation = "get"
	OpQuery  Operation = "query"
	OpScan   Operation = "scan"
	OpPut    Operation = "put"
	OpDelete Operation = "delete"
)

// memTable holds the rows of one table keyed by their encoded primary key.
type memTable struct {
	partitionKey string
	sortKey      string
	rows         map[string]model.Record
}

// MemoryStore implements Store interface with in-memory storage. Numbers are
// held as json.Number, mirroring the exact decimals a real store returns.
type MemoryStore struct {
	mu       sync.RWMutex
	tables   map[string]*memTable
	failures map[Operation]error
	writes   int
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:   make(map[string]*memTable),
		failures: make(map[Operation]error),
	}
}

// CreateTable registers a table. sortKey may be empty.
func (s *MemoryStore) CreateTable(name, partitionKey, sortKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[name]; exists {
		return
	}
	s.tables[name] = &memTable{
		partitionKey: partitionKey,
		sortKey:      sortKey,
		rows:         make(map[string]model.Record),
	}
}

// FailWith makes every later call of op fail with a store error carrying
// code and message. An empty code clears the failure.
func (s *MemoryStore) FailWith(op Operation, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code == "" {
		delete(s.failures, op)
		return
	}
	s.failures[op] = &smithy.GenericAPIError{Code: code, Message: message}
}

// Writes returns the number of records written or deleted so far.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// GetItem retrieves a record by its full key.
func (s *MemoryStore) GetItem(ctx context.Context, table string, key model.Key) (model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get item: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpGet]; err != nil {
		absent, cerr := classify(describe(key), err, true)
		if absent {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", cerr)
	}

	t, ok := s.tables[table]
	if !ok {
		return nil, nil
	}

	id, err := t.encodeKey(map[string]any(key))
	if err != nil {
		return nil, fmt.Errorf("get item: %w", model.NewClientError(describe(key), err.Error()))
	}

	rec, ok := t.rows[id]
	if !ok {
		return nil, nil
	}

	return copyRecord(rec), nil
}

// QueryItems returns attr across every record sharing the partition key.
func (s *MemoryStore) QueryItems(ctx context.Context, table, keyName, keyValue, attr string) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("query items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpQuery]; err != nil {
		absent, cerr := classify(attr, err, true)
		if absent {
			return make([]any, 0), nil
		}
		return nil, fmt.Errorf("query items: %w", cerr)
	}

	values := make([]any, 0)
	t, ok := s.tables[table]
	if !ok {
		return values, nil
	}

	for _, rec := range t.sortedRows() {
		if fmt.Sprint(rec[keyName]) != keyValue {
			continue
		}
		if v, ok := rec[attr]; ok {
			values = append(values, v)
		}
	}

	return values, nil
}

// ScanItems returns attr across every record in the table.
func (s *MemoryStore) ScanItems(ctx context.Context, table, attr string) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("scan items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpScan]; err != nil {
		absent, cerr := classify(attr, err, true)
		if absent {
			return make([]any, 0), nil
		}
		return nil, fmt.Errorf("scan items: %w", cerr)
	}

	values := make([]any, 0)
	t, ok := s.tables[table]
	if !ok {
		return values, nil
	}

	for _, rec := range t.sortedRows() {
		if v, ok := rec[attr]; ok {
			values = append(values, v)
		}
	}

	return values, nil
}

// PutItems writes records, replacing any with the same key.
func (s *MemoryStore) PutItems(ctx context.Context, table string, records []model.Record) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("put items: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.writableTable(OpPut, table, describe(records))
	if err != nil {
		return fmt.Errorf("put items: %w", err)
	}

	for _, rec := range records {
		normalized, _ := normalizeNumbers(map[string]any(rec)).(map[string]any)
		id, err := t.encodeKey(normalized)
		if err != nil {
			return fmt.Errorf("put items: %w", model.NewClientError(describe(rec), err.Error()))
		}
		t.rows[id] = normalized
		s.writes++
	}

	return nil
}

// DeleteItems deletes keys. Missing keys are ignored.
func (s *MemoryStore) DeleteItems(ctx context.Context, table string, keys []model.Key) error {
	if len(keys) == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("delete items: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.writableTable(OpDelete, table, describe(keys))
	if err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	for _, key := range keys {
		id, err := t.encodeKey(map[string]any(key))
		if err != nil {
			return fmt.Errorf("delete items: %w", model.NewClientError(describe(key), err.Error()))
		}
		delete(t.rows, id)
		s.writes++
	}

	return nil
}

// writableTable resolves table for a write, applying injected failures and
// reporting a missing table the way DynamoDB does. Callers hold s.mu.
func (s *MemoryStore) writableTable(op Operation, table, input string) (*memTable, error) {
	if err := s.failures[op]; err != nil {
		_, cerr := classify(input, err, false)
		return nil, cerr
	}

	t, ok := s.tables[table]
	if !ok {
		_, cerr := classify(input, &smithy.GenericAPIError{
			Code:    CodeResourceNotFound,
			Message: "Requested resource not found: " + table,
		}, false)
		return nil, cerr
	}

	return t, nil
}

// encodeKey builds the row id from the key attributes of v.
func (t *memTable) encodeKey(v map[string]any) (string, error) {
	pk, ok := v[t.partitionKey]
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.partitionKey)
	}
	if t.sortKey == "" {
		return fmt.Sprint(normalizeNumbers(pk)), nil
	}

	sk, ok := v[t.sortKey]
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.sortKey)
	}
	return fmt.Sprintf("%v\x00%v", normalizeNumbers(pk), normalizeNumbers(sk)), nil
}

// sortedRows returns the rows ordered by their encoded key.
func (t *memTable) sortedRows() []model.Record {
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.rows[id])
	}
	return rows
}

// normalizeNumbers converts Go numeric values to json.Number recursively.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case int:
		return json.Number(strconv.Itoa(val))
	case int64:
		return json.Number(strconv.FormatInt(val, 10))
	case float64:
		return json.Number(strconv.FormatFloat(val, 'f', -1, 64))
	case interface{ String() string }:
		if _, isNum := val.(interface{ Int64() (int64, error) }); isNum {
			return json.Number(val.String())
		}
		return v
	case model.Record:
		return normalizeNumbers(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeNumbers(item)
		}
		return out
	default:
		return v
	}
}

// copyRecord returns a deep copy of rec.
func copyRecord(rec model.Record) model.Record {
	out, _ := normalizeNumbers(map[string]any(rec)).(map[string]any)
	return out
}
