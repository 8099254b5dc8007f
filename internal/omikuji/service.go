// Package omikuji implements the category and draw operations on top of a
// key-value store.
package omikuji

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/omikuji-api/internal/config"
	"github.com/vyrodovalexey/omikuji-api/internal/model"
	"github.com/vyrodovalexey/omikuji-api/internal/store"
)

var drawsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "omikuji_draws_total",
		Help: "Total number of successful draws",
	},
	[]string{"category"},
)

// IntN returns a uniformly distributed integer in [0, n).
type IntN func(n int) int

// Service runs the category and draw operations for one invocation.
// The store handle is shared across invocations; Service itself is cheap.
type Service struct {
	store  store.Store
	tables config.Tables
	intN   IntN
}

// Option configures a Service.
type Option func(*Service)

// WithIntN replaces the random source used by Draw.
func WithIntN(fn IntN) Option {
	return func(s *Service) {
		s.intN = fn
	}
}

// NewService creates a new Service.
func NewService(s store.Store, tables config.Tables, opts ...Option) *Service {
	svc := &Service{
		store:  s,
		tables: tables,
		intN:   rand.Intn,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateCategory stores items under name with ids 0..len(items)-1 and then
// the category record counting them. Items are written first so the
// category never reports items that do not exist yet.
func (s *Service) CreateCategory(ctx context.Context, name string, items []map[string]any) error {
	if len(items) == 0 {
		return model.NewClientError(name, "items is empty")
	}

	records := make([]model.Record, 0, len(items))
	for i, payload := range items {
		for attr := range payload {
			if model.IsReservedAttr(attr) {
				return model.NewClientError(attr, "item attribute is reserved: "+attr)
			}
		}
		records = append(records, model.ItemRecord(name, i, payload))
	}

	existing, err := s.store.GetItem(ctx, s.tables.Category, model.CategoryKey(name))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if existing != nil {
		return model.NewClientError(name, "category already exists: "+name)
	}

	if err := s.store.PutItems(ctx, s.tables.Item, records); err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	category := model.Category{Name: name, NumItem: len(items)}
	if err := s.store.PutItems(ctx, s.tables.Category, []model.Record{category.Record()}); err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	return nil
}

// ListCategories returns every category name. The whole table is scanned.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	values, err := s.store.ScanItems(ctx, s.tables.Category, model.AttrCategory)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}

	return names, nil
}

// DeleteCategory removes every item of name and then the category itself.
func (s *Service) DeleteCategory(ctx context.Context, name string) error {
	if _, err := s.lookup(ctx, name); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	ids, err := s.store.QueryItems(ctx, s.tables.Item, model.AttrCategory, name, model.AttrItemID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	keys := make([]model.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, model.Key{model.AttrCategory: name, model.AttrItemID: id})
	}

	if err := s.store.DeleteItems(ctx, s.tables.Item, keys); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	if err := s.store.DeleteItems(ctx, s.tables.Category, []model.Key{model.CategoryKey(name)}); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	return nil
}

// Draw picks one item of name uniformly at random and returns its payload.
func (s *Service) Draw(ctx context.Context, name string) (map[string]any, error) {
	category, err := s.lookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}

	if category.NumItem < 1 {
		return nil, model.NewServerError(name, "category has no items")
	}

	key := model.ItemKey(name, s.intN(category.NumItem))
	item, err := s.store.GetItem(ctx, s.tables.Item, key)
	if err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}
	if item == nil {
		return nil, model.NewServerError(
			fmt.Sprintf("%s/%d", name, key[model.AttrItemID]),
			"item does not exist",
		)
	}

	drawsTotal.WithLabelValues(name).Inc()

	return item.Payload(), nil
}

// lookup fetches the category record, treating absence as a client error.
func (s *Service) lookup(ctx context.Context, name string) (model.Category, error) {
	rec, err := s.store.GetItem(ctx, s.tables.Category, model.CategoryKey(name))
	if err != nil {
		return model.Category{}, err
	}
	if rec == nil {
		return model.Category{}, model.NewClientError(name, "category is empty: "+name)
	}

	n, err := toInt(rec[model.AttrNumItem])
	if err != nil {
		return model.Category{}, &model.ServerError{
			Input:   name,
			Message: "invalid num_item",
			Err:     err,
		}
	}

	return model.Category{Name: name, NumItem: n}, nil
}

// toInt converts a stored count into an int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("parse count: %w", err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parse count: %w", err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
