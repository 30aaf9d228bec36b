// Package households stores the customer account units staff order for, and
// the member emails allowed to order for themselves.
package households

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/repo"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

type Filter struct {
	IDs         []uuid.UUID
	MemberEmail string
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.Household, error)
	List(ctx context.Context, filter Filter) ([]models.Household, error)
	Create(ctx context.Context, household *models.Household) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, householdID uuid.UUID, email string) error
	IsMember(ctx context.Context, householdID uuid.UUID, email string) (bool, error)
}

type repository struct {
	repo.Store[models.Household]
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{Store: repo.NewStore[models.Household](conn, "household")}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Store: r.Store.Tx(tx)}
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Household, error) {
	query := r.DB(ctx).Model(&models.Household{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if email := normalizeEmail(filter.MemberEmail); email != "" {
		query = query.Where("id IN (?)", r.DB(ctx).
			Model(&models.HouseholdMember{}).
			Select("household_id").
			Where("user_email = ?", email))
	}
	var rows []models.Household
	if err := query.Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AddMember(ctx context.Context, householdID uuid.UUID, email string) error {
	member := models.HouseholdMember{HouseholdID: householdID, UserEmail: normalizeEmail(email)}
	return r.DB(ctx).Create(&member).Error
}

func (r *repository) IsMember(ctx context.Context, householdID uuid.UUID, email string) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.HouseholdMember{}).
		Where("household_id = ? AND user_email = ?", householdID, normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
