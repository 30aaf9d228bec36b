package cartsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

const householdIdentityPrefix = "household_"

// CartContext is who is shopping and on whose behalf. It is passed into every
// call; sessions never read it from ambient request state.
type CartContext struct {
	UserEmail         string
	Role              enums.Role
	ActingHouseholdID *uuid.UUID
}

// ResolveIdentity returns the cart key for c: household_<id> while acting for
// a household, otherwise the normalized user email.
func ResolveIdentity(c CartContext) string {
	if c.ActingHouseholdID != nil && *c.ActingHouseholdID != uuid.Nil {
		return householdIdentityPrefix + c.ActingHouseholdID.String()
	}
	return strings.ToLower(strings.TrimSpace(c.UserEmail))
}

// MembershipChecker answers whether email belongs to a household.
type MembershipChecker interface {
	IsMember(ctx context.Context, householdID uuid.UUID, email string) (bool, error)
}

// Authorize verifies c may place cart lines or orders for householdID. Staff
// style roles may act for any household; everyone else must be a member.
// A nil householdID is always allowed.
func Authorize(ctx context.Context, members MembershipChecker, c CartContext, householdID *uuid.UUID) error {
	if householdID == nil {
		return nil
	}
	if strings.TrimSpace(c.UserEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if c.Role.CanShopForAnyHousehold() {
		return nil
	}
	if members == nil {
		return PermissionError(*householdID)
	}
	ok, err := members.IsMember(ctx, *householdID, c.UserEmail)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check household membership")
	}
	if !ok {
		return PermissionError(*householdID)
	}
	return nil
}

// PermissionError reports an attempt to act for a household without rights.
func PermissionError(householdID uuid.UUID) error {
	return pkgerrors.Forbidden(fmt.Sprintf("not allowed to order for household %s", householdID)).
		WithDetails(map[string]any{"household_id": householdID.String()})
}
