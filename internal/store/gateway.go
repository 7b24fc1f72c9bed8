// Package store is the persistence gateway: one uniform set of document
// operations per entity type on top of gorm. Operations are request scoped
// and never span a transaction across entities.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("store: record not found")

// Filter is an equality match on column names. Slice values match with IN.
type Filter map[string]interface{}

// Query narrows FindMany.
type Query struct {
	Where   Filter
	Scopes  []func(*gorm.DB) *gorm.DB
	Order   string
	Limit   int
	Preload []string
}

type Gateway[T any] struct {
	db *gorm.DB
}

func NewGateway[T any](db *gorm.DB) *Gateway[T] {
	return &Gateway[T]{db: db}
}

func (g *Gateway[T]) Create(ctx context.Context, entity *T) error {
	return g.db.WithContext(ctx).Create(entity).Error
}

// CreateMany inserts all entities in a single batch statement.
func (g *Gateway[T]) CreateMany(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Create(&entities).Error
}

func (g *Gateway[T]) FindByID(ctx context.Context, id uuid.UUID, preload ...string) (*T, error) {
	var out T
	tx := g.db.WithContext(ctx)
	for _, p := range preload {
		tx = tx.Preload(p)
	}
	if err := tx.First(&out, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (g *Gateway[T]) FindOne(ctx context.Context, q Query) (*T, error) {
	var out T
	if err := g.apply(ctx, q).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (g *Gateway[T]) FindMany(ctx context.Context, q Query) ([]T, error) {
	out := []T{}
	if err := g.apply(ctx, q).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway[T]) Count(ctx context.Context, q Query) (int64, error) {
	var n int64
	tx := g.db.WithContext(ctx).Model(new(T))
	if len(q.Where) > 0 {
		tx = tx.Where(map[string]interface{}(q.Where))
	}
	for _, scope := range q.Scopes {
		tx = scope(tx)
	}
	err := tx.Count(&n).Error
	return n, err
}

// UpdateByID applies patch (column -> value) and returns the stored entity.
func (g *Gateway[T]) UpdateByID(ctx context.Context, id uuid.UUID, patch map[string]interface{}, preload ...string) (*T, error) {
	if _, err := g.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if len(patch) > 0 {
		if err := g.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(patch).Error; err != nil {
			return nil, err
		}
	}
	return g.FindByID(ctx, id, preload...)
}

func (g *Gateway[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result := g.db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany refuses an empty filter so a missing argument can never wipe
// a collection.
func (g *Gateway[T]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, errors.New("store: DeleteMany requires a filter")
	}
	result := g.db.WithContext(ctx).Where(map[string]interface{}(filter)).Delete(new(T))
	return result.RowsAffected, result.Error
}

func (g *Gateway[T]) apply(ctx context.Context, q Query) *gorm.DB {
	tx := g.db.WithContext(ctx)
	for _, p := range q.Preload {
		tx = tx.Preload(p)
	}
	if len(q.Where) > 0 {
		tx = tx.Where(map[string]interface{}(q.Where))
	}
	for _, scope := range q.Scopes {
		tx = scope(tx)
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
