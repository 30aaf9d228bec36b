package repo

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

func TestBaseDB_BindsContext(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewStore[models.Vendor](dbtest.Open(t).DB(), "vendor")

	vendor := &models.Vendor{Name: "Green Farm", DeliveryFee: 12}
	require.NoError(t, store.Create(ctx, vendor))
	require.NotEqual(t, uuid.Nil, vendor.ID)

	got, err := store.Get(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Green Farm", got.Name)

	require.NoError(t, store.Update(ctx, vendor.ID, map[string]any{"delivery_fee": 15.0}))
	got, err = store.Get(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.DeliveryFee)

	require.NoError(t, store.Delete(ctx, vendor.ID))
	_, err = store.Get(ctx, vendor.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestStoreMissingRowsAreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore[models.Vendor](dbtest.Open(t).DB(), "vendor")
	missing := uuid.New()

	err := store.Update(ctx, missing, map[string]any{"name": "x"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	err = store.Delete(ctx, missing)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
