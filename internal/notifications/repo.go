package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/repo"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/pagination"
)

// Filter narrows List. RecipientEmail is required.
type Filter struct {
	RecipientEmail string
	UnreadOnly     bool
	Limit          int
	Cursor         *pagination.Cursor
}

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, filter Filter) ([]models.Notification, string, error)
	MarkRead(ctx context.Context, recipientEmail string, id uuid.UUID, now time.Time) (MarkResult, error)
	MarkAllRead(ctx context.Context, recipientEmail string, now time.Time) (int64, error)
	// DeleteReadBefore removes notifications read before cutoff. Unread rows
	// are kept regardless of age.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MarkResult reports whether the row exists for the recipient and whether
// this call flipped it to read.
type MarkResult struct {
	Updated bool
	Found   bool
}

type repository struct {
	repo.Store[models.Notification]
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Store: repo.NewStore[models.Notification](conn, "notification")}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Store: r.Store.Tx(tx)}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	notification.RecipientEmail = normalizeEmail(notification.RecipientEmail)
	return r.Store.Create(ctx, notification)
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Notification, string, error) {
	query := r.DB(ctx).Model(&models.Notification{}).Where("recipient_email = ?", normalizeEmail(filter.RecipientEmail))
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if filter.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(filter.Limit)).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Page(rows, filter.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *repository) MarkRead(ctx context.Context, recipientEmail string, id uuid.UUID, now time.Time) (MarkResult, error) {
	email := normalizeEmail(recipientEmail)
	result := r.DB(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_email = ? AND read_at IS NULL", id, email).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return MarkResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return MarkResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.DB(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_email = ?", id, email).
		Count(&count).Error; err != nil {
		return MarkResult{}, err
	}
	return MarkResult{Found: count > 0}, nil
}

func (r *repository) MarkAllRead(ctx context.Context, recipientEmail string, now time.Time) (int64, error) {
	result := r.DB(ctx).
		Model(&models.Notification{}).
		Where("recipient_email = ? AND read_at IS NULL", normalizeEmail(recipientEmail)).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
