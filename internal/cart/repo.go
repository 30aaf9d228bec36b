// Package cart persists cart line items keyed by cart identity. It performs
// no reconciliation; internal/cartsync layers local state on top.
package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/repo"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// LineFilter narrows List. Identity is required; nil pointers are ignored.
// NoHousehold matches rows without a household, which a nil HouseholdID cannot
// express.
type LineFilter struct {
	Identity    string
	ProductID   *uuid.UUID
	HouseholdID *uuid.UUID
	NoHousehold bool
	VendorID    *uuid.UUID
}

// Repository exposes typed cart line persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.CartLineItem, error)
	List(ctx context.Context, filter LineFilter) ([]models.CartLineItem, error)
	Create(ctx context.Context, line *models.CartLineItem) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	// UpdateLine and DeleteLine only touch lines stored under identity. A line
	// of another cart reports NOT_FOUND.
	UpdateLine(ctx context.Context, identity string, id uuid.UUID, updates map[string]any) error
	DeleteLine(ctx context.Context, identity string, id uuid.UUID) error
}

type repository struct {
	repo.Store[models.CartLineItem]
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{Store: repo.NewStore[models.CartLineItem](conn, "cart item")}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Store: r.Store.Tx(tx)}
}

func (r *repository) List(ctx context.Context, filter LineFilter) ([]models.CartLineItem, error) {
	query := r.DB(ctx).Model(&models.CartLineItem{}).Where("cart_identity = ?", filter.Identity)
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	switch {
	case filter.HouseholdID != nil:
		query = query.Where("household_id = ?", *filter.HouseholdID)
	case filter.NoHousehold:
		query = query.Where("household_id IS NULL")
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}

	var rows []models.CartLineItem
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateLine(ctx context.Context, identity string, id uuid.UUID, updates map[string]any) error {
	return r.UpdateScoped(ctx, id, identityScope(identity), updates)
}

func (r *repository) DeleteLine(ctx context.Context, identity string, id uuid.UUID) error {
	return r.DeleteScoped(ctx, id, identityScope(identity))
}

func identityScope(identity string) map[string]any {
	return map[string]any{"cart_identity": identity}
}
