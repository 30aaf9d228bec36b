package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/pagination"
)

func newService(t *testing.T) (Service, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func seed(t *testing.T, repo Repository, email string, createdAt time.Time) models.Notification {
	t.Helper()
	n := models.Notification{
		RecipientEmail: email,
		Type:           enums.NotificationTypeOrderPlaced,
		Title:          "Order placed",
		Message:        "PO-1",
		CreatedAt:      createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), &n))
	return n
}

func TestCreateValidatesAndNormalizesRecipient(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Type: enums.NotificationTypeOrderPlaced, Title: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, CreateInput{RecipientEmail: "a@b.c", Type: "bogus", Title: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	orderID := uuid.New()
	row, err := svc.Create(ctx, CreateInput{
		RecipientEmail: " Dana@Example.com ",
		Type:           enums.NotificationTypeOrderReceived,
		Title:          "New order",
		OrderID:        &orderID,
	})
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", row.RecipientEmail)

	page, err := svc.List(ctx, "DANA@example.com", ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, orderID, *page.Items[0].OrderID)
}

func TestListPagesNewestFirstPerRecipient(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seed(t, repo, "dana@example.com", base.Add(time.Duration(i)*time.Minute))
	}
	seed(t, repo, "other@example.com", base)

	first, err := svc.List(ctx, "dana@example.com", ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, "dana@example.com", ListParams{Params: pagination.Params{Limit: 2, Cursor: first.Cursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
	assert.True(t, second.Items[0].CreatedAt.Equal(base), "oldest notification is not skipped")

	_, err = svc.List(ctx, "dana@example.com", ListParams{Params: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.List(ctx, "", ListParams{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	n := seed(t, repo, "dana@example.com", time.Now())

	err := svc.MarkRead(ctx, "other@example.com", n.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.MarkRead(ctx, "dana@example.com", n.ID))
	require.NoError(t, svc.MarkRead(ctx, "dana@example.com", n.ID), "second mark is a no-op")

	unread, err := svc.List(ctx, "dana@example.com", ListParams{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

func TestMarkAllRead(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	seed(t, repo, "dana@example.com", time.Now())
	seed(t, repo, "dana@example.com", time.Now())
	seed(t, repo, "other@example.com", time.Now())

	n, err := svc.MarkAllRead(ctx, "dana@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err := svc.List(ctx, "other@example.com", ListParams{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 1)
}
