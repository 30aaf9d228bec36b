package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

type contextKey string

const (
	ctxEmail     contextKey = "user_email"
	ctxRole      contextKey = "actor_role"
	ctxHousehold contextKey = "acting_household_id"
)

func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

func ActingHouseholdFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxHousehold).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// WithIdentity injects the authenticated caller into the context.
func WithIdentity(ctx context.Context, email string, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxEmail, email)
	return context.WithValue(ctx, ctxRole, role)
}

// WithActingHousehold injects the household the caller is shopping for.
func WithActingHousehold(ctx context.Context, householdID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxHousehold, householdID)
}

// CartContext assembles the explicit cart context services take.
func CartContext(ctx context.Context) cartsync.CartContext {
	return cartsync.CartContext{
		UserEmail:         EmailFromContext(ctx),
		Role:              RoleFromContext(ctx),
		ActingHouseholdID: ActingHouseholdFromContext(ctx),
	}
}
