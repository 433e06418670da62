package product_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/product"
)

func TestCategoryLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.categories.CreateCategory(ctx, &product.CategoryCreateRequest{Name: "Books"})
	assert.ErrorIs(t, err, product.ErrCategoryExists)

	music, err := e.categories.CreateCategory(ctx, &product.CategoryCreateRequest{Name: "Music", Description: "Records"})
	require.NoError(t, err)

	e.create(t, "Atlas", "10.00", 1)

	list, err := e.categories.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Books", list[0].Name)
	assert.EqualValues(t, 1, list[0].ProductCount)
	assert.EqualValues(t, 0, list[1].ProductCount)

	renamed := "Books"
	_, err = e.categories.UpdateCategory(ctx, music.ID, &product.CategoryUpdateRequest{Name: &renamed})
	assert.ErrorIs(t, err, product.ErrCategoryExists)

	assert.ErrorIs(t, e.categories.DeleteCategory(ctx, e.category.ID), product.ErrCategoryInUse)
	require.NoError(t, e.categories.DeleteCategory(ctx, music.ID))

	_, err = e.categories.GetCategory(ctx, music.ID)
	assert.ErrorIs(t, err, product.ErrCategoryNotFound)
}
