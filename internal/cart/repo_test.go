package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

func TestListScopesByIdentityAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	vendor := uuid.New()
	household := uuid.New()
	product := uuid.New()

	lines := []*models.CartLineItem{
		{CartIdentity: "dana@example.com", ProductID: product, VendorID: &vendor, UnitPrice: 4, Quantity: 1},
		{CartIdentity: "dana@example.com", ProductID: uuid.New(), UnitPrice: 2, Quantity: 3},
		{CartIdentity: "household_" + household.String(), ProductID: product, VendorID: &vendor, HouseholdID: &household, UnitPrice: 4, Quantity: 2},
	}
	for _, line := range lines {
		require.NoError(t, repo.Create(ctx, line))
	}

	own, err := repo.List(ctx, LineFilter{Identity: "dana@example.com"})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	scoped, err := repo.List(ctx, LineFilter{Identity: "dana@example.com", VendorID: &vendor})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, product, scoped[0].ProductID)

	noHousehold, err := repo.List(ctx, LineFilter{Identity: "dana@example.com", ProductID: &product, NoHousehold: true})
	require.NoError(t, err)
	assert.Len(t, noHousehold, 1)

	forHousehold, err := repo.List(ctx, LineFilter{Identity: "household_" + household.String(), HouseholdID: &household})
	require.NoError(t, err)
	require.Len(t, forHousehold, 1)
	assert.Equal(t, 2.0, forHousehold[0].Quantity)
}

func TestUpdateAndDeleteMissingLine(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	err := repo.Update(ctx, uuid.New(), map[string]any{"quantity": 2.0})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	err = repo.Delete(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestLineWritesStayInsideIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	victim := &models.CartLineItem{CartIdentity: "victim@example.com", ProductID: uuid.New(), UnitPrice: 3, Quantity: 1}
	require.NoError(t, repo.Create(ctx, victim))

	err := repo.UpdateLine(ctx, "attacker@example.com", victim.ID, map[string]any{"quantity": 99.0})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	err = repo.DeleteLine(ctx, "attacker@example.com", victim.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	stored, err := repo.Get(ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Quantity)

	require.NoError(t, repo.UpdateLine(ctx, "victim@example.com", victim.ID, map[string]any{"quantity": 2.0}))
	require.NoError(t, repo.DeleteLine(ctx, "victim@example.com", victim.ID))
	_, err = repo.Get(ctx, victim.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
