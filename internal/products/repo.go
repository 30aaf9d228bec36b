// Package products reads the catalog rows order placement snapshots.
package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/repo"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	IDs        []uuid.UUID
	VendorID   *uuid.UUID
	ActiveOnly bool
}

// Repository exposes typed product persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter Filter) ([]models.Product, error)
	// GetMany returns the products for ids keyed by id. Missing ids are absent.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	repo.Store[models.Product]
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{Store: repo.NewStore[models.Product](conn, "product")}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Store: r.Store.Tx(tx)}
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Product, error) {
	query := r.DB(ctx).Model(&models.Product{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var rows []models.Product
	if err := query.Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.List(ctx, Filter{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
