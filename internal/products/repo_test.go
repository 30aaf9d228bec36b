package products

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

func TestRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	vendorA, vendorB := uuid.New(), uuid.New()
	apples := &models.Product{Name: "Apples", VendorID: &vendorA, BasePrice: 10, IsActive: true}
	bread := &models.Product{Name: "Bread", VendorID: &vendorB, BasePrice: 8, IsActive: true}
	stale := &models.Product{Name: "Cider", VendorID: &vendorA, BasePrice: 20}
	for _, p := range []*models.Product{apples, bread, stale} {
		require.NoError(t, repo.Create(ctx, p))
	}
	require.NoError(t, repo.Update(ctx, stale.ID, map[string]any{"is_active": false}))

	rows, err := repo.List(ctx, Filter{VendorID: &vendorA})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Apples", rows[0].Name)

	rows, err = repo.List(ctx, Filter{VendorID: &vendorA, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	byID, err := repo.GetMany(ctx, []uuid.UUID{apples.ID, bread.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "Bread", byID[bread.ID].Name)
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
