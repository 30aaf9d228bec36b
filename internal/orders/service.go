// Package orders serves the read side of placed orders, scoped to the caller.
package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	"github.com/angelmondragon/grocery-backend/pkg/pagination"
)

type Service interface {
	Get(ctx context.Context, viewer cartsync.CartContext, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, viewer cartsync.CartContext, params pagination.Params) (*ListResult, error)
}

type ListResult struct {
	Orders []models.Order `json:"orders"`
	Cursor string         `json:"cursor,omitempty"`
}

type service struct {
	repo    Repository
	members cartsync.MembershipChecker
}

func NewService(repo Repository, members cartsync.MembershipChecker) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	return &service{repo: repo, members: members}, nil
}

func (s *service) Get(ctx context.Context, viewer cartsync.CartContext, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, viewer, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns the acting household's orders when one is set, otherwise the
// orders the viewer placed.
func (s *service) List(ctx context.Context, viewer cartsync.CartContext, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := Filter{Limit: params.Limit, Cursor: cursor}
	if viewer.ActingHouseholdID != nil {
		if err := cartsync.Authorize(ctx, s.members, viewer, viewer.ActingHouseholdID); err != nil {
			return nil, err
		}
		filter.HouseholdID = viewer.ActingHouseholdID
	} else {
		email := normalize(viewer.UserEmail)
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
		}
		filter.UserEmail = email
	}

	rows, next, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return &ListResult{Orders: rows, Cursor: next}, nil
}

func (s *service) canView(ctx context.Context, viewer cartsync.CartContext, order *models.Order) error {
	switch {
	case viewer.Role == enums.RoleAdmin || viewer.Role == enums.RoleStaff:
		return nil
	case normalize(order.UserEmail) == normalize(viewer.UserEmail) && normalize(viewer.UserEmail) != "":
		return nil
	case order.HouseholdID != nil:
		if err := cartsync.Authorize(ctx, s.members, viewer, order.HouseholdID); err == nil {
			return nil
		}
	}
	return pkgerrors.Forbidden("order belongs to another customer")
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
