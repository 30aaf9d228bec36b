// Package notifications stores in-app notifications for customers and vendors
// and serves them back to their recipients.
package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/pagination"
)

// Service defines notification create/list/read operations.
type Service interface {
	Create(ctx context.Context, in CreateInput) (*models.Notification, error)
	List(ctx context.Context, recipientEmail string, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, recipientEmail string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientEmail string) (int64, error)
}

// CreateInput is a new notification.
type CreateInput struct {
	RecipientEmail string
	Type           enums.NotificationType
	Title          string
	Message        string
	OrderID        *uuid.UUID
	Link           *string
}

// ListParams configures pagination for notifications.
type ListParams struct {
	pagination.Params
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

type service struct {
	repo  Repository
	clock func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository required")
	}
	return &service{repo: repo, clock: time.Now}, nil
}

func (s *service) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	if strings.TrimSpace(in.RecipientEmail) == "" {
		return nil, pkgerrors.Validation("recipient email required")
	}
	if !in.Type.IsValid() {
		return nil, pkgerrors.Validation("invalid notification type")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, pkgerrors.Validation("notification title required")
	}
	row := &models.Notification{
		RecipientEmail: in.RecipientEmail,
		Type:           in.Type,
		Title:          in.Title,
		Message:        in.Message,
		OrderID:        in.OrderID,
		Link:           in.Link,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create notification")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, recipientEmail string, params ListParams) (*ListResult, error) {
	if strings.TrimSpace(recipientEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, Filter{
		RecipientEmail: recipientEmail,
		UnreadOnly:     params.UnreadOnly,
		Limit:          params.Limit,
		Cursor:         cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list notifications")
	}
	return &ListResult{Items: rows, Cursor: next}, nil
}

func (s *service) MarkRead(ctx context.Context, recipientEmail string, id uuid.UUID) error {
	if strings.TrimSpace(recipientEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if id == uuid.Nil {
		return pkgerrors.Validation("notification id required")
	}
	result, err := s.repo.MarkRead(ctx, recipientEmail, id, s.clock().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.NotFound("notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientEmail string) (int64, error) {
	if strings.TrimSpace(recipientEmail) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	n, err := s.repo.MarkAllRead(ctx, recipientEmail, s.clock().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notifications read")
	}
	return n, nil
}
