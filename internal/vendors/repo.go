// Package vendors reads supplier records: contact details, delivery fee and
// the language purchase orders are written in.
package vendors

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/repo"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

type Filter struct {
	IDs []uuid.UUID
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	List(ctx context.Context, filter Filter) ([]models.Vendor, error)
	Create(ctx context.Context, vendor *models.Vendor) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	repo.Store[models.Vendor]
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{Store: repo.NewStore[models.Vendor](conn, "vendor")}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Store: r.Store.Tx(tx)}
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Vendor, error) {
	query := r.DB(ctx).Model(&models.Vendor{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	var rows []models.Vendor
	if err := query.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ByID indexes vendors by id.
func ByID(rows []models.Vendor) map[uuid.UUID]models.Vendor {
	out := make(map[uuid.UUID]models.Vendor, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out
}
