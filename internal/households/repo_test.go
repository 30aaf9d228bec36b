package households

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

func TestMembership(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	home := &models.Household{Code: "H-100", Name: "Levi"}
	other := &models.Household{Code: "H-200", Name: "Cohen"}
	require.NoError(t, repo.Create(ctx, home))
	require.NoError(t, repo.Create(ctx, other))
	require.NoError(t, repo.AddMember(ctx, home.ID, " Dana@Example.com "))

	ok, err := repo.IsMember(ctx, home.ID, "dana@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsMember(ctx, other.ID, "dana@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := repo.List(ctx, Filter{MemberEmail: "DANA@example.com"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "H-100", rows[0].Code)
}

func TestGetMissingHousehold(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
