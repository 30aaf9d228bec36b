package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/db"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(conn *gorm.DB) Base {
	return Base{db: conn}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Store implements the id-keyed half of a typed repository for model T.
// Entity packages embed it and add their own filtered List.
type Store[T any] struct {
	Base
	label string
}

// NewStore binds a Store to conn. label names the entity in NOT_FOUND errors.
func NewStore[T any](conn *gorm.DB, label string) Store[T] {
	return Store[T]{Base: NewBase(conn), label: label}
}

// Tx returns a copy of the store that runs on tx. A nil tx returns s unchanged.
func (s Store[T]) Tx(tx *gorm.DB) Store[T] {
	if tx == nil {
		return s
	}
	return Store[T]{Base: NewBase(tx), label: s.label}
}

func (s Store[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var record T
	if err := s.DB(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, db.MapNotFound(err, s.label+" not found")
	}
	return &record, nil
}

func (s Store[T]) Create(ctx context.Context, record *T) error {
	return s.DB(ctx).Create(record).Error
}

// Update writes the given column values and reports NOT_FOUND when no row matched.
func (s Store[T]) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return s.UpdateScoped(ctx, id, nil, updates)
}

// UpdateScoped is Update limited to rows that also match every column in
// scope. A row outside the scope reports NOT_FOUND like a missing one.
func (s Store[T]) UpdateScoped(ctx context.Context, id uuid.UUID, scope map[string]any, updates map[string]any) error {
	var model T
	result := s.scoped(ctx, id, scope).Model(&model).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.MapNotFound(gorm.ErrRecordNotFound, s.label+" not found")
	}
	return nil
}

// Delete removes the row and reports NOT_FOUND when it was already gone.
func (s Store[T]) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DeleteScoped(ctx, id, nil)
}

// DeleteScoped is Delete limited to rows that also match scope.
func (s Store[T]) DeleteScoped(ctx context.Context, id uuid.UUID, scope map[string]any) error {
	var model T
	result := s.scoped(ctx, id, scope).Delete(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.MapNotFound(gorm.ErrRecordNotFound, s.label+" not found")
	}
	return nil
}

func (s Store[T]) scoped(ctx context.Context, id uuid.UUID, scope map[string]any) *gorm.DB {
	query := s.DB(ctx).Where("id = ?", id)
	if len(scope) > 0 {
		query = query.Where(scope)
	}
	return query
}
